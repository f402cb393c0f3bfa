package domain

import "context"

// Transaction exposes the ledger operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	FindItem(code ItemCode) (Item, bool)
	// UpsertItem writes an item record, creating it on first write.
	UpsertItem(item Item) (Item, error)
	RoleOf(id Identity) Role
	AssignRole(id Identity, role Role) (RoleAssignment, error)
	RevokeRole(id Identity) (RoleAssignment, error)
	Gate() Gate
	SetGate(gate Gate) (Gate, error)
	// OnCommit registers a hook that runs after rules pass and before the
	// transaction state is published. A hook error discards the transaction.
	OnCommit(hook func(ctx context.Context) error)
}

// TransactionView provides read-only access to snapshot data for rules and queries.
type TransactionView interface {
	FindItem(code ItemCode) (Item, bool)
	ListItems() []Item
	RoleOf(id Identity) Role
	ListMembers() []RoleAssignment
	Gate() Gate
}

// PersistentStore is a minimal abstraction over durable backends. Readers
// observe the last published snapshot and never block on writers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
