package core

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"custodyledger/pkg/domain"
)

func TestEscrowRejectsNestedCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.advance(t, item100, StateMftrDispatched)

	var (
		nestedErr    error
		nestedStatus ItemStatus
		calls        int
	)
	f.book.SetHook(func(hctx context.Context, transfer domain.Transfer) error {
		calls++
		if !f.svc.TransferInFlight() {
			t.Errorf("guard not held during transfer")
		}
		_, _, nestedErr = f.svc.ReceiveFromManufacturer(hctx, distributorB, item100, transfer.Amount)
		nestedStatus, _ = f.svc.GetStatus(hctx, item100)
		return nil
	})

	item, _, err := f.svc.ReceiveFromManufacturer(ctx, distributorB, item100, 500)
	if err != nil {
		t.Fatalf("outer receive: %v", err)
	}
	if item.State != StateDistrReceived || item.Custodian != distributorB {
		t.Fatalf("unexpected item %+v", item)
	}
	expectCode(t, nestedErr, domain.CodeReentrantCall)
	if nestedStatus.State != StateMftrDispatched {
		t.Fatalf("reads during a transfer see the last committed state, got %s", nestedStatus.State)
	}
	if calls != 1 || len(f.book.History()) != 1 {
		t.Fatalf("expected exactly one transfer, hook calls=%d history=%d", calls, len(f.book.History()))
	}
	if f.book.Balance(manufacturerA) != 500 || f.book.Balance(distributorB) != 500 {
		t.Fatalf("unexpected balances A=%d B=%d", f.book.Balance(manufacturerA), f.book.Balance(distributorB))
	}
	if f.svc.TransferInFlight() {
		t.Fatalf("guard left held")
	}
}

func TestEscrowSinkFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.advance(t, item100, StateDistrDispatched)
	before := f.status(t, item100)
	events := len(f.events.Events())

	f.book.SetHook(func(hctx context.Context, transfer domain.Transfer) error {
		_, _, err := f.svc.ReceiveFromDistributor(hctx, pharmacistC, item100, transfer.Amount)
		return err
	})
	_, _, err := f.svc.ReceiveFromDistributor(ctx, pharmacistC, item100, 700)
	expectCode(t, err, domain.CodeTransferFailed)
	if !errors.Is(err, domain.ErrReentrantCall) {
		t.Fatalf("expected the nested failure in the cause chain, got %v", err)
	}
	if after := f.status(t, item100); after != before {
		t.Fatalf("state changed on failed transfer: %+v -> %+v", before, after)
	}
	if len(f.events.Events()) != events {
		t.Fatalf("failed transfer emitted an event")
	}
	if f.svc.TransferInFlight() {
		t.Fatalf("guard left held after failure")
	}

	// the guard is free again: a later attempt settles normally
	f.book.SetHook(nil)
	if _, _, err := f.svc.ReceiveFromDistributor(ctx, pharmacistC, item100, 700); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if f.book.Balance(distributorB) != 1000-500+700 {
		t.Fatalf("distributor not credited, balance %d", f.book.Balance(distributorB))
	}
}

func TestEscrowDestinationRejects(t *testing.T) {
	f := newFixture(t)
	f.advance(t, item100, StateMftrDispatched)
	f.book.RejectDeposits(manufacturerA)
	_, _, err := f.svc.ReceiveFromManufacturer(context.Background(), distributorB, item100, 500)
	expectCode(t, err, domain.CodeTransferFailed)
	if status := f.status(t, item100); status.State != StateMftrDispatched || status.Custodian != manufacturerA {
		t.Fatalf("custody moved on failed transfer: %+v", status)
	}
}

func TestEscrowTimeout(t *testing.T) {
	f := newFixture(t, WithTransferTimeout(20*time.Millisecond))
	f.advance(t, item100, StateMftrDispatched)
	f.book.SetHook(func(hctx context.Context, _ domain.Transfer) error {
		<-hctx.Done()
		return hctx.Err()
	})
	_, _, err := f.svc.ReceiveFromManufacturer(context.Background(), distributorB, item100, 500)
	expectCode(t, err, domain.CodeTransferFailed)
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout reason, got %v", err)
	}
	if f.svc.TransferInFlight() {
		t.Fatalf("guard left held after timeout")
	}
	if status := f.status(t, item100); status.State != StateMftrDispatched {
		t.Fatalf("state changed after timeout: %+v", status)
	}
}

func TestEscrowInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.advance(t, item100, StateManufactured)
	if _, _, err := f.svc.DispatchToDistributor(ctx, manufacturerA, item100, 5000); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	_, _, err := f.svc.ReceiveFromManufacturer(ctx, distributorB, item100, 5000)
	expectCode(t, err, domain.CodeInsufficientFunds)
	if f.book.Balance(distributorB) != 1000 || f.book.Balance(manufacturerA) != 0 {
		t.Fatalf("funds moved on insufficient balance")
	}
	if status := f.status(t, item100); status.State != StateMftrDispatched || status.Price != 5000 {
		t.Fatalf("unexpected record %+v", status)
	}
}

func TestEscrowWithoutTransferer(t *testing.T) {
	f := newFixture(t, WithFundTransferer(nil))
	f.advance(t, item100, StateMftrDispatched)
	_, _, err := f.svc.ReceiveFromManufacturer(context.Background(), distributorB, item100, 500)
	expectCode(t, err, domain.CodeTransferFailed)
}

func TestZeroPriceReceiveStillSettles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.advance(t, item100, StateManufactured)
	if _, _, err := f.svc.DispatchToDistributor(ctx, manufacturerA, item100, 0); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, _, err := f.svc.ReceiveFromManufacturer(ctx, distributorB, item100, 0); err != nil {
		t.Fatalf("receive: %v", err)
	}
	history := f.book.History()
	if len(history) != 1 || history[0].Amount != 0 || history[0].To != manufacturerA {
		t.Fatalf("unexpected transfer history %+v", history)
	}
}

// slowTransferer ignores its context and reports success after delay.
type slowTransferer struct {
	delay    time.Duration
	finished atomic.Bool
}

func (s *slowTransferer) Transfer(context.Context, domain.Transfer) error {
	time.Sleep(s.delay)
	s.finished.Store(true)
	return nil
}

func TestEscrowTimeoutBindsSinkIgnoringContext(t *testing.T) {
	sink := &slowTransferer{delay: 300 * time.Millisecond}
	f := newFixture(t, WithTransferTimeout(20*time.Millisecond), WithFundTransferer(sink))
	f.advance(t, item100, StateMftrDispatched)

	start := time.Now()
	_, _, err := f.svc.ReceiveFromManufacturer(context.Background(), distributorB, item100, 500)
	elapsed := time.Since(start)
	expectCode(t, err, domain.CodeTransferFailed)
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout reason, got %v", err)
	}
	if elapsed >= sink.delay {
		t.Fatalf("deadline not enforced, returned after %s", elapsed)
	}
	if sink.finished.Load() {
		t.Fatalf("sink finished before the deadline fired")
	}
	if status := f.status(t, item100); status.State != StateMftrDispatched || status.Custodian != manufacturerA {
		t.Fatalf("custody moved after timeout: %+v", status)
	}
	if f.svc.TransferInFlight() {
		t.Fatalf("guard left held after abandoning the sink")
	}
	// the writer lock is free again while the abandoned sink still sleeps
	if _, _, err := f.svc.Register(context.Background(), regulatorD, outsider, RolePharmacist); err != nil {
		t.Fatalf("register after timeout: %v", err)
	}
}

func TestEscrowRefusesSelfPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.advance(t, item100, StateMftrDispatched)
	if _, _, err := f.svc.Unregister(ctx, regulatorD, manufacturerA); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, _, err := f.svc.Register(ctx, regulatorD, manufacturerA, RoleDistributor); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if err := f.book.Deposit(manufacturerA, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, _, err := f.svc.ReceiveFromManufacturer(ctx, manufacturerA, item100, 500)
	expectCode(t, err, domain.CodeTransferFailed)
	if got := f.book.Balance(manufacturerA); got != 500 {
		t.Fatalf("self payment changed the balance to %d", got)
	}
	if len(f.book.History()) != 0 {
		t.Fatalf("self payment reached the account book")
	}
	if status := f.status(t, item100); status.State != StateMftrDispatched || status.Custodian != manufacturerA {
		t.Fatalf("custody moved on self payment: %+v", status)
	}
}

func TestConcurrentCallerWaitsForTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.advance(t, item100, StateMftrDispatched)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	f.book.SetHook(func(context.Context, domain.Transfer) error {
		close(entered)
		<-proceed
		return nil
	})
	receiveErr := make(chan error, 1)
	go func() {
		_, _, err := f.svc.ReceiveFromManufacturer(ctx, distributorB, item100, 500)
		receiveErr <- err
	}()
	<-entered

	registerErr := make(chan error, 1)
	go func() {
		_, _, err := f.svc.Register(ctx, regulatorD, outsider, RoleManufacturer)
		registerErr <- err
	}()
	select {
	case err := <-registerErr:
		t.Fatalf("register finished while the transfer held the writer lock: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(proceed)

	if err := <-receiveErr; err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-registerErr; err != nil {
		t.Fatalf("queued register should succeed after the transfer, got %v", err)
	}
	if role, _ := f.svc.RoleOf(ctx, outsider); role != RoleManufacturer {
		t.Fatalf("queued register not applied, role %s", role)
	}
}
