package core

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"custodyledger/internal/blob"
	"custodyledger/internal/infra/events"
	"custodyledger/internal/infra/funds"
	"custodyledger/pkg/domain"
)

var (
	manufacturerA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	distributorB    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	pharmacistC     = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	regulatorD      = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	outsider        = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	referenceDigest = common.HexToHash("0x5f16f4c7f149ac4f9510d9cf8cf384038ad348b3bcdc01915f95de12df9d1b02")
	otherDigest     = common.HexToHash("0x01")
)

const item100 ItemCode = 100

type fixture struct {
	svc    *Service
	book   *funds.Book
	events *events.Recorder
	docs   blob.Store
}

// newFixture builds a service with the four parties registered, the reference
// digest pinned and the two buyers funded.
func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{book: funds.NewBook(), events: events.NewRecorder(), docs: blob.NewMemory()}
	base := []Option{WithFundTransferer(f.book), WithEventSink(f.events), WithDocumentStore(f.docs)}
	f.svc = NewInMemoryService(NewDefaultRulesEngine(), append(base, opts...)...)
	if err := f.svc.Bootstrap(ctx, []Identity{regulatorD}, referenceDigest); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	for _, p := range []struct {
		id   Identity
		role Role
	}{
		{manufacturerA, RoleManufacturer},
		{distributorB, RoleDistributor},
		{pharmacistC, RolePharmacist},
	} {
		if _, _, err := f.svc.Register(ctx, regulatorD, p.id, p.role); err != nil {
			t.Fatalf("register %s: %v", p.role, err)
		}
	}
	for _, id := range []Identity{distributorB, pharmacistC} {
		if err := f.book.Deposit(id, 1000); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return f
}

// advance drives code along the custody path until it reaches target.
func (f fixture) advance(t *testing.T, code ItemCode, target State) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		state State
		do    func() (Item, Result, error)
	}{
		{StateApproved, func() (Item, Result, error) { return f.svc.ApproveDrug(ctx, regulatorD, code, referenceDigest) }},
		{StateManufactured, func() (Item, Result, error) { return f.svc.ManufactureDrug(ctx, manufacturerA, code) }},
		{StateMftrDispatched, func() (Item, Result, error) { return f.svc.DispatchToDistributor(ctx, manufacturerA, code, 500) }},
		{StateDistrReceived, func() (Item, Result, error) { return f.svc.ReceiveFromManufacturer(ctx, distributorB, code, 500) }},
		{StateDistrDispatched, func() (Item, Result, error) { return f.svc.DispatchToPharmacist(ctx, distributorB, code, 700) }},
		{StatePharReceived, func() (Item, Result, error) { return f.svc.ReceiveFromDistributor(ctx, pharmacistC, code, 700) }},
		{StateDispensed, func() (Item, Result, error) { return f.svc.DispenseToConsumer(ctx, pharmacistC, code, 0) }},
	}
	for _, step := range steps {
		item, _, err := step.do()
		if err != nil {
			t.Fatalf("advance to %s: %v", step.state, err)
		}
		if item.State != step.state {
			t.Fatalf("expected state %s, got %s", step.state, item.State)
		}
		if step.state == target {
			return
		}
	}
	t.Fatalf("target state %s not on the custody path", target)
}

func (f fixture) status(t *testing.T, code ItemCode) ItemStatus {
	t.Helper()
	status, err := f.svc.GetStatus(context.Background(), code)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	return status
}

func expectCode(t *testing.T, err error, want domain.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := domain.CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
	var le *domain.Error
	if !errors.As(err, &le) || le.Message == "" {
		t.Fatalf("expected a ledger error with a reason, got %v", err)
	}
}
