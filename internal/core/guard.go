package core

import (
	"context"
	"sync/atomic"

	"custodyledger/pkg/domain"
)

// ReentrancyGuard is the flag held for the duration of an external fund
// transfer. The context handed to the transfer sink is marked with the guard,
// so a call made through it is told apart from an unrelated caller that is
// queued on the writer lock.
type ReentrancyGuard struct {
	held atomic.Bool
}

type transferScopeKey struct{}

// Enter acquires the guard and returns ctx marked as inside the transfer. The
// returned release func is idempotent and must be called on every exit path.
func (g *ReentrancyGuard) Enter(ctx context.Context) (context.Context, func(), error) {
	if !g.held.CompareAndSwap(false, true) {
		return ctx, func() {}, domain.New(domain.CodeReentrantCall, "reentrant call during fund transfer")
	}
	var once atomic.Bool
	release := func() {
		if once.CompareAndSwap(false, true) {
			g.held.Store(false)
		}
	}
	return context.WithValue(ctx, transferScopeKey{}, g), release, nil
}

// Within reports whether ctx descends from a transfer entered on g. The mark
// outlives the release, so a sink that keeps running after its deadline still
// cannot mutate the ledger.
func (g *ReentrancyGuard) Within(ctx context.Context) bool {
	marked, _ := ctx.Value(transferScopeKey{}).(*ReentrancyGuard)
	return marked == g
}

// Held reports whether a transfer is in flight.
func (g *ReentrancyGuard) Held() bool {
	return g.held.Load()
}
