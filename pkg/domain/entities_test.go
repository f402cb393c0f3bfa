package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseItemCode(t *testing.T) {
	code, err := ParseItemCode(" 100 ")
	if err != nil || code != 100 || code.String() != "100" {
		t.Fatalf("unexpected code %v %v", code, err)
	}
	for _, raw := range []string{"", "-1", "abc", "18446744073709551616"} {
		if _, err := ParseItemCode(raw); CodeOf(err) != CodeInvalidArgument {
			t.Fatalf("expected invalid argument for %q, got %v", raw, err)
		}
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"Manufacturer": RoleManufacturer,
		" distributor": RoleDistributor,
		"PHARMACIST":   RolePharmacist,
		"regulator":    RoleRegulator,
		"":             RoleUnassigned,
		"unassigned":   RoleUnassigned,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseRole("courier"); CodeOf(err) != CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if Role("courier").IsMember() || RoleUnassigned.IsMember() || !RoleRegulator.IsMember() {
		t.Fatalf("unexpected membership")
	}
	if RoleUnassigned.String() != "unassigned" {
		t.Fatalf("unexpected unassigned name %q", RoleUnassigned.String())
	}
}

func TestStates(t *testing.T) {
	for _, s := range []State{StateApproved, StateHold, StateManufactured, StateMftrDispatched,
		StateDistrReceived, StateDistrDispatched, StatePharReceived, StateDispensed} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
		if s.Terminal() != (s == StateDispensed) {
			t.Fatalf("unexpected terminal flag for %s", s)
		}
	}
	if State("recalled").Valid() {
		t.Fatalf("unknown state reported valid")
	}
	if item := DefaultItem(5); item.Code != 5 || item.State != StateApproved || item.Price != 0 {
		t.Fatalf("unexpected default item %+v", item)
	}
}

func TestParseIdentityAndDigest(t *testing.T) {
	id, err := ParseIdentity("0x00000000000000000000000000000000000000a1")
	if err != nil || id != common.HexToAddress("0xa1") {
		t.Fatalf("unexpected identity %s %v", id.Hex(), err)
	}
	if _, err := ParseIdentity("0x1234"); CodeOf(err) != CodeInvalidArgument {
		t.Fatalf("expected invalid identity, got %v", err)
	}
	raw := "5f16f4c7f149ac4f9510d9cf8cf384038ad348b3bcdc01915f95de12df9d1b02"
	d1, err1 := ParseDigest(raw)
	d2, err2 := ParseDigest("0x" + raw)
	if err1 != nil || err2 != nil || d1 != d2 || d1 != common.HexToHash(raw) {
		t.Fatalf("unexpected digests %s %s %v %v", d1.Hex(), d2.Hex(), err1, err2)
	}
	for _, bad := range []string{"", "0x01", "zz" + raw[2:]} {
		if _, err := ParseDigest(bad); CodeOf(err) != CodeInvalidArgument {
			t.Fatalf("expected invalid digest for %q, got %v", bad, err)
		}
	}
}

func TestVerificationOutcomeNames(t *testing.T) {
	if Illegitimate != 0 || VerifiedLegitimate != 1 || Unverified != 2 {
		t.Fatalf("outcome codes changed")
	}
	if VerifiedLegitimate.String() != "verified_legitimate" || VerificationOutcome(9).String() != "outcome(9)" {
		t.Fatalf("unexpected outcome names")
	}
}
