package core

import (
	"context"
	"errors"
	"fmt"

	"custodyledger/pkg/domain"
)

// settle performs the escrow transfer for a receive operation. It runs as a
// commit hook: a returned error discards the transaction, so the custody
// change and the fund movement either both happen or neither does. The guard
// is held for the whole transfer and released on every path.
//
// The sink runs on its own goroutine so the deadline binds even when it
// ignores its context. A sink still running at the deadline is abandoned: the
// operation fails with TRANSFER_FAILED and the late outcome is only logged.
func (s *Service) settle(ctx context.Context, transfer domain.Transfer) error {
	if s.opts.funds == nil {
		return domain.New(domain.CodeTransferFailed, "no fund transferer configured")
	}
	if transfer.From == transfer.To {
		return domain.WithMetadata(domain.CodeTransferFailed,
			fmt.Sprintf("%s already holds item %s and cannot pay itself", transfer.From.Hex(), transfer.ItemCode),
			map[string]string{"item": transfer.ItemCode.String(), "identity": transfer.From.Hex()})
	}
	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	tctx, cancel := context.WithTimeout(ctx, s.opts.transferTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.opts.funds.Transfer(tctx, transfer) }()
	select {
	case err = <-done:
		if err == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			err = tctx.Err()
		}
	case <-tctx.Done():
		err = tctx.Err()
		go s.abandon(transfer, done)
	}

	switch {
	case err == nil:
		return nil
	case domain.CodeOf(err) == domain.CodeInsufficientFunds:
		return domain.Wrap(domain.CodeInsufficientFunds,
			fmt.Sprintf("%s cannot pay %d for item %s", transfer.From.Hex(), transfer.Amount, transfer.ItemCode), err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.CodeTransferFailed,
			fmt.Sprintf("transfer for item %s timed out after %s", transfer.ItemCode, s.opts.transferTimeout), err)
	default:
		return domain.Wrap(domain.CodeTransferFailed,
			fmt.Sprintf("transfer of %d to %s for item %s failed", transfer.Amount, transfer.To.Hex(), transfer.ItemCode), err)
	}
}

// abandon waits for a sink that overran its deadline and logs what it did.
func (s *Service) abandon(transfer domain.Transfer, done <-chan error) {
	err := <-done
	args := []any{
		"item", transfer.ItemCode.String(), "from", transfer.From.Hex(),
		"to", transfer.To.Hex(), "amount", transfer.Amount,
	}
	if err == nil {
		s.logger.Error("fund transfer completed after its deadline, custody was not moved", args...)
		return
	}
	s.logger.Warn("abandoned fund transfer finished", append(args, "error", err)...)
}
