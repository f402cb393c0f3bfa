package core

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"custodyledger/pkg/domain"
)

func TestRegisterAndUnregister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	newcomer := common.HexToAddress("0x00000000000000000000000000000000000000f6")

	assigned, _, err := f.svc.Register(ctx, outsider, newcomer, RoleDistributor)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if assigned.Identity != newcomer || assigned.Role != RoleDistributor || assigned.AssignedAt.IsZero() {
		t.Fatalf("unexpected assignment %+v", assigned)
	}
	_, _, err = f.svc.Register(ctx, outsider, newcomer, RolePharmacist)
	expectCode(t, err, domain.CodeAlreadyRegistered)
	if role, _ := f.svc.RoleOf(ctx, newcomer); role != RoleDistributor {
		t.Fatalf("duplicate registration changed role to %s", role)
	}

	revoked, _, err := f.svc.Unregister(ctx, outsider, newcomer)
	if err != nil || revoked.Role != RoleDistributor {
		t.Fatalf("unregister: %+v %v", revoked, err)
	}
	if role, _ := f.svc.RoleOf(ctx, newcomer); role != RoleUnassigned {
		t.Fatalf("expected unassigned after unregister, got %s", role)
	}
	_, _, err = f.svc.Unregister(ctx, outsider, newcomer)
	expectCode(t, err, domain.CodeNotAMember)

	// a former member may register again with another role
	if _, _, err := f.svc.Register(ctx, outsider, newcomer, RolePharmacist); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	kinds := f.events.Kinds()
	tail := kinds[len(kinds)-3:]
	if tail[0] != domain.EventRegistered || tail[1] != domain.EventUnregistered || tail[2] != domain.EventRegistered {
		t.Fatalf("unexpected registry events %v", tail)
	}
}

func TestRegisterRejectsUnassignedRole(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Register(context.Background(), regulatorD, outsider, RoleUnassigned)
	expectCode(t, err, domain.CodeInvalidArgument)
	_, _, err = f.svc.Register(context.Background(), regulatorD, outsider, Role("Courier"))
	expectCode(t, err, domain.CodeInvalidArgument)
}

func TestRegulatorRegistrationPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithRegistrationPolicy(PolicyRegulator))
	newcomer := common.HexToAddress("0x00000000000000000000000000000000000000f6")

	_, _, err := f.svc.Register(ctx, manufacturerA, newcomer, RoleManufacturer)
	expectCode(t, err, domain.CodeAccessDenied)
	_, _, err = f.svc.Unregister(ctx, outsider, manufacturerA)
	expectCode(t, err, domain.CodeAccessDenied)

	if _, _, err := f.svc.Register(ctx, regulatorD, newcomer, RoleManufacturer); err != nil {
		t.Fatalf("regulator register: %v", err)
	}
	if _, _, err := f.svc.Unregister(ctx, regulatorD, newcomer); err != nil {
		t.Fatalf("regulator unregister: %v", err)
	}
}

func TestUnregisteredPartyLosesAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.advance(t, item100, StateApproved)
	if _, _, err := f.svc.Unregister(ctx, regulatorD, manufacturerA); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	_, _, err := f.svc.ManufactureDrug(ctx, manufacturerA, item100)
	expectCode(t, err, domain.CodeAccessDenied)
	outcome, err := f.svc.VerifyDrug(ctx, item100, manufacturerA, distributorB, pharmacistC)
	if err != nil || outcome != Illegitimate {
		t.Fatalf("expected illegitimate after unregister, got %s %v", outcome, err)
	}
}

func TestMembersListing(t *testing.T) {
	f := newFixture(t)
	members, err := f.svc.Members(context.Background())
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	want := []struct {
		id   Identity
		role Role
	}{
		{manufacturerA, RoleManufacturer},
		{distributorB, RoleDistributor},
		{pharmacistC, RolePharmacist},
		{regulatorD, RoleRegulator},
	}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %+v", len(want), members)
	}
	for i, w := range want {
		if members[i].Identity != w.id || members[i].Role != w.role {
			t.Fatalf("member %d: expected %s/%s, got %+v", i, w.id.Hex(), w.role, members[i])
		}
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	replaced := common.HexToHash("0xbeef")
	if _, _, err := f.svc.UpdateHash(ctx, regulatorD, replaced); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	events := len(f.events.Events())

	if err := f.svc.Bootstrap(ctx, []Identity{regulatorD, manufacturerA}, referenceDigest); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	gate, _ := f.svc.CurrentDigest(ctx)
	if gate.Digest != replaced {
		t.Fatalf("bootstrap overwrote the digest: %s", gate.Digest.Hex())
	}
	if role, _ := f.svc.RoleOf(ctx, manufacturerA); role != RoleManufacturer {
		t.Fatalf("bootstrap replaced an existing role: %s", role)
	}
	if len(f.events.Events()) != events {
		t.Fatalf("bootstrap of existing members emitted events")
	}
}
