package core

import (
	"fmt"
	"strings"
	"time"

	"custodyledger/internal/blob"
	"custodyledger/pkg/domain"
)

// DefaultTransferTimeout bounds a single escrow fund transfer.
const DefaultTransferTimeout = 5 * time.Second

// Policy controls who may call an administrative operation.
type Policy string

const (
	// PolicyOpen lets any caller perform the operation.
	PolicyOpen Policy = "open"
	// PolicyRegulator restricts the operation to Regulators.
	PolicyRegulator Policy = "regulator"
)

// ParsePolicy converts a configuration value into a Policy; empty means open.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyRegulator:
		return PolicyRegulator, nil
	default:
		return "", fmt.Errorf("unknown policy %q", raw)
	}
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock              Clock
	logger             Logger
	audit              AuditRecorder
	metrics            MetricsRecorder
	tracer             Tracer
	funds              domain.FundTransferer
	events             domain.EventSink
	documents          blob.Store
	registrationPolicy Policy
	hashPolicy         Policy
	strictItems        bool
	transferTimeout    time.Duration
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:              ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:             noopLogger{},
		audit:              noopAuditRecorder{},
		metrics:            noopMetricsRecorder{},
		tracer:             noopTracer{},
		registrationPolicy: PolicyOpen,
		hashPolicy:         PolicyOpen,
		transferTimeout:    DefaultTransferTimeout,
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithFundTransferer sets the sink used by the escrow receive operations.
func WithFundTransferer(funds domain.FundTransferer) Option {
	return func(o *serviceOptions) { o.funds = funds }
}

// WithEventSink sets the notification sink.
func WithEventSink(sink domain.EventSink) Option {
	return func(o *serviceOptions) { o.events = sink }
}

// WithDocumentStore sets the blob store holding anchored reference documents.
func WithDocumentStore(store blob.Store) Option {
	return func(o *serviceOptions) { o.documents = store }
}

// WithRegistrationPolicy controls who may register and unregister identities.
func WithRegistrationPolicy(p Policy) Option {
	return func(o *serviceOptions) {
		if p != "" {
			o.registrationPolicy = p
		}
	}
}

// WithHashPolicy controls who may replace the integrity digest.
func WithHashPolicy(p Policy) Option {
	return func(o *serviceOptions) {
		if p != "" {
			o.hashPolicy = p
		}
	}
}

// WithStrictItems makes non-regulator transitions on never-written codes fail
// with UNKNOWN_ITEM instead of acting on the default record.
func WithStrictItems(strict bool) Option {
	return func(o *serviceOptions) { o.strictItems = strict }
}

// WithTransferTimeout bounds each escrow transfer; non-positive values keep the default.
func WithTransferTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		if d > 0 {
			o.transferTimeout = d
		}
	}
}
