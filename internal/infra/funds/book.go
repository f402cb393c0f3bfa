// Package funds provides an in-process account book implementing
// domain.FundTransferer for tests, demos and single-node deployments.
package funds

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"custodyledger/pkg/domain"
)

var _ domain.FundTransferer = (*Book)(nil)

// Account is a balance held by an identity.
type Account struct {
	Identity domain.Identity `json:"identity"`
	Balance  uint64          `json:"balance"`
}

// Book tracks balances per identity and applies transfers atomically.
type Book struct {
	mu       sync.Mutex
	balances map[domain.Identity]uint64
	rejects  map[domain.Identity]struct{}
	history  []domain.Transfer
	hook     func(ctx context.Context, transfer domain.Transfer) error
}

// NewBook returns an empty account book.
func NewBook() *Book {
	return &Book{
		balances: make(map[domain.Identity]uint64),
		rejects:  make(map[domain.Identity]struct{}),
	}
}

// Deposit credits amount to id.
func (b *Book) Deposit(id domain.Identity, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.balances[id] + amount
	if next < b.balances[id] {
		return fmt.Errorf("deposit overflows balance of %s", id.Hex())
	}
	b.balances[id] = next
	return nil
}

// Balance returns the balance of id.
func (b *Book) Balance(id domain.Identity) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id]
}

// Accounts lists non-zero balances ordered by identity.
func (b *Book) Accounts() []Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Account, 0, len(b.balances))
	for id, bal := range b.balances {
		if bal == 0 {
			continue
		}
		out = append(out, Account{Identity: id, Balance: bal})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Cmp(out[j].Identity) < 0 })
	return out
}

// RejectDeposits makes transfers to id fail, emulating a destination that refuses funds.
func (b *Book) RejectDeposits(id domain.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejects[id] = struct{}{}
}

// SetHook installs a callback invoked before each transfer is applied. The
// callback runs without the book lock held and may call back into the ledger;
// a non-nil error aborts the transfer.
func (b *Book) SetHook(hook func(ctx context.Context, transfer domain.Transfer) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = hook
}

// History returns applied transfers in order.
func (b *Book) History() []domain.Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Transfer(nil), b.history...)
}

// Transfer moves transfer.Amount from transfer.From to transfer.To. A
// transfer whose source and destination are the same account is refused.
func (b *Book) Transfer(ctx context.Context, transfer domain.Transfer) error {
	if transfer.From == transfer.To {
		return fmt.Errorf("%s cannot transfer to itself", transfer.From.Hex())
	}
	b.mu.Lock()
	hook := b.hook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, transfer); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, rejected := b.rejects[transfer.To]; rejected {
		return fmt.Errorf("destination %s rejects deposits", transfer.To.Hex())
	}
	if b.balances[transfer.From] < transfer.Amount {
		return domain.WithMetadata(domain.CodeInsufficientFunds,
			fmt.Sprintf("balance of %s is below %d", transfer.From.Hex(), transfer.Amount),
			map[string]string{"identity": transfer.From.Hex()})
	}
	credited := b.balances[transfer.To] + transfer.Amount
	if credited < b.balances[transfer.To] {
		return fmt.Errorf("transfer overflows balance of %s", transfer.To.Hex())
	}
	b.balances[transfer.From] -= transfer.Amount
	b.balances[transfer.To] = credited
	b.history = append(b.history, transfer)
	return nil
}
