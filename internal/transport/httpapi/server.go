// Package httpapi exposes the custody ledger over HTTP/JSON.
package httpapi

import (
	"context"
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodyledger/internal/core"
	"custodyledger/internal/infra/funds"
	"custodyledger/pkg/domain"
)

// HeaderCaller carries the authenticated caller identity set by the gateway.
const HeaderCaller = "X-Caller-Identity"

// DefaultMaxDocumentBytes bounds an uploaded reference document.
const DefaultMaxDocumentBytes = 16 << 20

// Accounts is the account book surface exposed for funding demo parties.
type Accounts interface {
	Deposit(id domain.Identity, amount uint64) error
	Balance(id domain.Identity) uint64
	Accounts() []funds.Account
}

// Server routes HTTP requests to a ledger service.
type Server struct {
	svc              *core.Service
	accounts         Accounts
	gatherer         prometheus.Gatherer
	deposits         bool
	debugVars        bool
	logger           core.Logger
	maxDocumentBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithAccounts exposes the account book under /api/v1/accounts.
func WithAccounts(accounts Accounts) Option {
	return func(s *Server) { s.accounts = accounts }
}

// WithDeposits enables crediting accounts over HTTP. Only regulators may
// deposit, and the route requires WithAccounts.
func WithDeposits() Option {
	return func(s *Server) { s.deposits = true }
}

// WithDebugVars serves expvar counters at /debug/vars.
func WithDebugVars() Option {
	return func(s *Server) { s.debugVars = true }
}

// WithMetrics serves gatherer at /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = gatherer }
}

// WithLogger installs a request logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxDocumentBytes overrides the upload limit for anchored documents.
func WithMaxDocumentBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxDocumentBytes = n
		}
	}
}

// NewServer constructs a Server for svc.
func NewServer(svc *core.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: discardLogger{}, maxDocumentBytes: DefaultMaxDocumentBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.debugVars {
		r.Handle("/debug/vars", expvar.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/members", func(m chi.Router) {
			m.Get("/", s.handleMembers)
			m.Post("/", s.handleRegister)
			m.Get("/{identity}", s.handleRoleOf)
			m.Delete("/{identity}", s.handleUnregister)
		})
		api.Get("/integrity", s.handleCurrentDigest)
		api.Put("/integrity", s.handleUpdateHash)
		api.Route("/documents", func(d chi.Router) {
			d.Get("/", s.handleDocuments)
			d.Put("/*", s.handleAnchorDocument)
			d.Get("/*", s.handleCheckDocument)
		})
		api.Route("/items", func(it chi.Router) {
			it.Get("/", s.handleItems)
			it.Route("/{code}", func(item chi.Router) {
				item.Get("/", s.handleGetStatus)
				item.Get("/verify", s.handleVerify)
				item.Post("/approve", s.digestTransition(s.svc.ApproveDrug))
				item.Post("/suspend", s.digestTransition(s.svc.SuspendDrug))
				item.Post("/manufacture", s.handleManufacture)
				item.Post("/dispatch-to-distributor", s.amountTransition(s.svc.DispatchToDistributor))
				item.Post("/receive-from-manufacturer", s.amountTransition(s.svc.ReceiveFromManufacturer))
				item.Post("/dispatch-to-pharmacist", s.amountTransition(s.svc.DispatchToPharmacist))
				item.Post("/receive-from-distributor", s.amountTransition(s.svc.ReceiveFromDistributor))
				item.Post("/dispense", s.amountTransition(s.svc.DispenseToConsumer))
			})
		})
		if s.accounts != nil {
			api.Get("/accounts", s.handleAccounts)
			api.Get("/accounts/{identity}", s.handleBalance)
			if s.deposits {
				api.Post("/accounts/{identity}/deposits", s.handleDeposit)
			}
		}
	})
	return r
}

// requestContext assigns a request ID and logs each request on completion.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", id)
	})
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}
