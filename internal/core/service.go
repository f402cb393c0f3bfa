package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"custodyledger/internal/infra/persistence/memory"
	"custodyledger/pkg/domain"
)

// Service is the custody ledger engine. It owns the role registry, the item
// ledger, the integrity gate and the reentrancy guard; every mutation runs in
// one store transaction.
type Service struct {
	store domain.PersistentStore
	guard ReentrancyGuard
	opts  serviceOptions

	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// clockedStore is implemented by stores that stamp records with their own
// time source.
type clockedStore interface {
	SetNowFunc(fn func() time.Time)
}

// NewService constructs a service backed by the supplied store. Stores that
// stamp records are switched to the service clock.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	svc := &Service{
		store:   store,
		opts:    options,
		clock:   options.clock,
		logger:  options.logger,
		audit:   options.audit,
		metrics: options.metrics,
		tracer:  options.tracer,
	}
	if cs, ok := store.(clockedStore); ok {
		cs.SetNowFunc(svc.clock.Now)
	}
	return svc
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// TransferInFlight reports whether the reentrancy guard is currently held.
func (s *Service) TransferInFlight() bool {
	return s.guard.Held()
}

// call identifies an operation for tracing, metrics, audit and logs.
type call struct {
	op     Operation
	entity EntityType
	id     string
	actor  Identity
}

// run executes fn in a store transaction. A call made through the context of
// an in-flight fund transfer is refused, since it would otherwise wait on the
// writer lock it is nested under. Other callers queue on that lock.
func (s *Service) run(ctx context.Context, c call, fn func(domain.Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, string(c.op))
	start := s.clock.Now()

	var (
		res Result
		err error
	)
	if s.guard.Within(ctx) {
		err = domain.Errorf(domain.CodeReentrantCall, "%s rejected while a fund transfer is in flight", c.op)
	} else {
		res, err = s.store.RunInTransaction(ctx, fn)
		err = normalizeError(c.op, err)
	}

	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, string(c.op), err == nil, duration)
	s.recordAudit(ctx, c, err, duration)
	if err != nil {
		s.logger.Error("ledger operation failed",
			"operation", string(c.op), "entity", string(c.entity), "id", c.id,
			"code", string(domain.CodeOf(err)), "error", err)
		return res, err
	}
	s.logger.Debug("ledger operation committed",
		"operation", string(c.op), "entity", string(c.entity), "id", c.id, "duration", duration)
	return res, nil
}

// normalizeError gives every failure a ledger code.
func normalizeError(op Operation, err error) error {
	if err == nil {
		return nil
	}
	var rv domain.RuleViolationError
	if errors.As(err, &rv) {
		return domain.Wrap(domain.CodeInvalidStateTransition, fmt.Sprintf("%s blocked", op), err)
	}
	if domain.CodeOf(err) == domain.CodeUnknown {
		return domain.Wrap(domain.CodeInternal, fmt.Sprintf("%s failed", op), err)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, c call, err error, duration time.Duration) {
	entry := AuditEntry{
		Operation: string(c.op),
		Entity:    c.entity,
		EntityID:  c.id,
		Actor:     c.actor,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Code = domain.CodeOf(err)
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// publish stamps and delivers event. Sink failures are logged, never
// returned: the mutation has already committed.
func (s *Service) publish(ctx context.Context, event Event) {
	if s.opts.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = s.clock.Now()
	if err := s.opts.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "kind", string(event.Kind), "id", event.ID, "error", err)
	}
}

type roleReader interface {
	RoleOf(id Identity) Role
}

// requireRole fails with ACCESS_DENIED unless caller holds want.
func requireRole(view roleReader, op Operation, caller Identity, want Role) error {
	have := view.RoleOf(caller)
	if have == want {
		return nil
	}
	return domain.WithMetadata(domain.CodeAccessDenied,
		fmt.Sprintf("%s requires role %s, caller %s has %s", op, want, caller.Hex(), have),
		map[string]string{
			"operation":     string(op),
			"required_role": want.String(),
			"caller_role":   have.String(),
		})
}

func requirePolicy(view roleReader, policy Policy, op Operation, caller Identity) error {
	if policy != PolicyRegulator {
		return nil
	}
	return requireRole(view, op, caller, RoleRegulator)
}

// Bootstrap seeds initial regulators and the integrity digest. Identities that
// already hold a role keep it; an existing digest is never overwritten, so a
// restart does not undo a later UpdateHash.
func (s *Service) Bootstrap(ctx context.Context, regulators []Identity, digest Digest) error {
	var seeded []Identity
	_, err := s.run(ctx, call{op: OpBootstrap, entity: EntityRole}, func(tx domain.Transaction) error {
		seeded = seeded[:0]
		for _, id := range regulators {
			if role := tx.RoleOf(id); role.IsMember() {
				if role != RoleRegulator {
					s.logger.Warn("bootstrap regulator already holds another role", "identity", id.Hex(), "role", role.String())
				}
				continue
			}
			if _, err := tx.AssignRole(id, RoleRegulator); err != nil {
				return err
			}
			seeded = append(seeded, id)
		}
		if digest != (Digest{}) && tx.Gate().Digest == (Digest{}) {
			if _, err := tx.SetGate(Gate{Digest: digest}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range seeded {
		s.publish(ctx, Event{Kind: domain.EventRegistered, Identity: id})
	}
	return nil
}
