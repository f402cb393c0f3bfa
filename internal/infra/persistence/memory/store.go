// Package memory provides an in-memory implementation of the ledger
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"custodyledger/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Item aliases domain.Item for in-memory persistence operations.
	Item = domain.Item
	// ItemCode aliases domain.ItemCode.
	ItemCode = domain.ItemCode
	// Identity aliases domain.Identity.
	Identity = domain.Identity
	// RoleAssignment aliases domain.RoleAssignment.
	RoleAssignment = domain.RoleAssignment
	// Gate aliases domain.Gate.
	Gate = domain.Gate
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	items map[ItemCode]Item
	roles map[Identity]RoleAssignment
	gate  Gate
}

// Snapshot captures a point-in-time copy of the store state.
type Snapshot struct {
	Items map[ItemCode]Item           `json:"items"`
	Roles map[Identity]RoleAssignment `json:"roles"`
	Gate  Gate                        `json:"gate"`
}

func newMemoryState() memoryState {
	return memoryState{
		items: make(map[ItemCode]Item),
		roles: make(map[Identity]RoleAssignment),
	}
}

// Records hold no reference types, so a map copy is a deep copy.
func (s memoryState) clone() memoryState {
	cloned := memoryState{
		items: make(map[ItemCode]Item, len(s.items)),
		roles: make(map[Identity]RoleAssignment, len(s.roles)),
		gate:  s.gate,
	}
	for k, v := range s.items {
		cloned.items[k] = v
	}
	for k, v := range s.roles {
		cloned.roles[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Items: cloned.items, Roles: cloned.roles, Gate: cloned.gate}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Items {
		v.Code = k
		state.items[k] = v
	}
	for k, v := range s.Roles {
		if !v.Role.IsMember() {
			continue
		}
		v.Identity = k
		state.roles[k] = v
	}
	state.gate = s.Gate
	return state
}

// PendingWrite is a durable write staged before a transaction is published.
// *sql.Tx satisfies it.
type PendingWrite interface {
	Commit() error
	Rollback() error
}

// Persister stages snapshot in durable storage. It runs under the writer
// lock after rules pass and before commit hooks.
type Persister func(ctx context.Context, snapshot Snapshot) (PendingWrite, error)

// Store provides an in-memory transactional store. Writers are serialized by
// mu; readers load the last published state, which is never mutated.
type Store struct {
	mu        sync.Mutex
	published atomic.Pointer[memoryState]
	engine    *RulesEngine
	nowFn     func() time.Time
	persister Persister
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	initial := newMemoryState()
	s.published.Store(&initial)
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	return snapshotFromMemoryState(*s.published.Load())
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := memoryStateFromSnapshot(snapshot)
	s.published.Store(&state)
}

// SetPersister installs the durable stage for committed state. A transaction
// is published only after its staged write commits.
func (s *Store) SetPersister(p Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

// SetNowFunc overrides the time provider, primarily for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	hooks   []func(context.Context) error
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// FindItem returns the stored record for code.
func (v transactionView) FindItem(code ItemCode) (Item, bool) {
	item, ok := v.state.items[code]
	return item, ok
}

// ListItems returns all items ordered by code.
func (v transactionView) ListItems() []Item {
	out := make([]Item, 0, len(v.state.items))
	for _, item := range v.state.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// RoleOf returns the identity's role, Unassigned when absent.
func (v transactionView) RoleOf(id Identity) domain.Role {
	return v.state.roles[id].Role
}

// ListMembers returns all role assignments ordered by identity.
func (v transactionView) ListMembers() []RoleAssignment {
	out := make([]RoleAssignment, 0, len(v.state.roles))
	for _, assignment := range v.state.roles {
		out = append(out, assignment)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Cmp(out[j].Identity) < 0 })
	return out
}

// Gate returns the integrity gate state.
func (v transactionView) Gate() Gate {
	return v.state.gate
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules run after fn, then the durable stage, then commit hooks. The staged
// write commits and the copy is published only when all succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.published.Load().clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	var pending PendingWrite
	if s.persister != nil {
		staged, err := s.persister(ctx, snapshotFromMemoryState(tx.state))
		if err != nil {
			return result, fmt.Errorf("stage snapshot: %w", err)
		}
		pending = staged
	}

	for _, hook := range tx.hooks {
		if err := hook(ctx); err != nil {
			if pending != nil {
				_ = pending.Rollback()
			}
			return result, err
		}
	}

	if pending != nil {
		if err := pending.Commit(); err != nil {
			return result, fmt.Errorf("commit snapshot: %w", err)
		}
	}

	next := tx.state
	s.published.Store(&next)
	return result, nil
}

// View executes fn against the last published snapshot without taking the writer lock.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	return fn(newTransactionView(s.published.Load()))
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// OnCommit registers a hook executed before the transaction is published.
func (tx *transaction) OnCommit(hook func(context.Context) error) {
	if hook != nil {
		tx.hooks = append(tx.hooks, hook)
	}
}

// FindItem exposes item lookup within the transaction scope.
func (tx *transaction) FindItem(code ItemCode) (Item, bool) {
	item, ok := tx.state.items[code]
	return item, ok
}

// UpsertItem writes item, creating the record when the code is new.
func (tx *transaction) UpsertItem(item Item) (Item, error) {
	if !item.State.Valid() {
		return Item{}, fmt.Errorf("item %s has invalid state %q", item.Code, item.State)
	}
	item.UpdatedAt = tx.now
	before, exists := tx.state.items[item.Code]
	tx.state.items[item.Code] = item
	if exists {
		tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionUpdate, Before: before, After: item})
	} else {
		tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionCreate, After: item})
	}
	return item, nil
}

// RoleOf returns the identity's role within the transaction scope.
func (tx *transaction) RoleOf(id Identity) domain.Role {
	return tx.state.roles[id].Role
}

// AssignRole binds id to role, replacing any previous assignment.
func (tx *transaction) AssignRole(id Identity, role domain.Role) (RoleAssignment, error) {
	if !role.IsMember() {
		return RoleAssignment{}, fmt.Errorf("cannot assign unassigned role to %s", id.Hex())
	}
	assignment := RoleAssignment{Identity: id, Role: role, AssignedAt: tx.now}
	before, exists := tx.state.roles[id]
	tx.state.roles[id] = assignment
	if exists {
		tx.recordChange(Change{Entity: domain.EntityRole, Action: domain.ActionUpdate, Before: before, After: assignment})
	} else {
		tx.recordChange(Change{Entity: domain.EntityRole, Action: domain.ActionCreate, After: assignment})
	}
	return assignment, nil
}

// RevokeRole removes id's assignment, returning the revoked record.
func (tx *transaction) RevokeRole(id Identity) (RoleAssignment, error) {
	current, ok := tx.state.roles[id]
	if !ok {
		return RoleAssignment{}, fmt.Errorf("identity %s has no role", id.Hex())
	}
	delete(tx.state.roles, id)
	tx.recordChange(Change{Entity: domain.EntityRole, Action: domain.ActionDelete, Before: current})
	return current, nil
}

// Gate returns the integrity gate within the transaction scope.
func (tx *transaction) Gate() Gate {
	return tx.state.gate
}

// SetGate overwrites the integrity gate.
func (tx *transaction) SetGate(gate Gate) (Gate, error) {
	before := tx.state.gate
	gate.UpdatedAt = tx.now
	tx.state.gate = gate
	tx.recordChange(Change{Entity: domain.EntityGate, Action: domain.ActionUpdate, Before: before, After: gate})
	return gate, nil
}
