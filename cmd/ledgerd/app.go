package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"custodyledger/internal/blob"
	"custodyledger/internal/core"
	"custodyledger/internal/infra/events"
	"custodyledger/internal/infra/funds"
	"custodyledger/internal/platform/config"
	"custodyledger/internal/platform/otel"
	"custodyledger/internal/transport/httpapi"
	"custodyledger/pkg/domain"
)

const (
	serviceName = "custodyledger"
	// expvarName is the /debug/vars key holding per-operation counters.
	expvarName = "custodyledger_operations"
)

// app holds the wired ledger process.
type app struct {
	svc     *core.Service
	book    *funds.Book
	handler http.Handler
	closers []func(context.Context) error
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// build wires storage, documents, funds, events, telemetry and the HTTP API.
// On error every resource opened so far is released.
func build(ctx context.Context, cfg config.Ledger, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	registrationPolicy, err := core.ParsePolicy(cfg.RegistrationPolicy)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_REGISTRATION_POLICY: %w", err)
	}
	hashPolicy, err := core.ParsePolicy(cfg.HashPolicy)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_HASH_POLICY: %w", err)
	}
	regulators, err := cfg.Regulators()
	if err != nil {
		return nil, err
	}
	digest, err := cfg.Digest()
	if err != nil {
		return nil, err
	}

	provider, shutdownTracing, err := otel.Setup(ctx, serviceName, otel.Config{Enabled: cfg.OTelEnabled, Endpoint: cfg.OTelEndpoint})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	store, err := core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      cfg.StorageDriver,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
	}, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}

	docs, err := blob.Open(ctx, blob.Config{
		Driver: cfg.BlobDriver,
		FSRoot: cfg.BlobFSRoot,
		S3: blob.S3Config{
			Region:          cfg.BlobS3Region,
			Bucket:          cfg.BlobS3Bucket,
			Endpoint:        cfg.BlobS3Endpoint,
			AccessKeyID:     cfg.BlobS3AccessKey,
			SecretAccessKey: cfg.BlobS3SecretKey,
			PathStyle:       cfg.BlobS3PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}

	a.book = funds.NewBook()
	if err := depositDemoFunds(a.book, cfg.DemoFunds); err != nil {
		return nil, err
	}

	sinks := events.Fanout{events.NewLogSink(logger)}
	if cfg.EventLog != "" {
		f, err := os.OpenFile(cfg.EventLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("event log: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return f.Close() })
		sinks = append(sinks, events.NewJSONLines(f))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	tracer := core.MultiTracer{core.NewOTelTracer(provider)}
	if cfg.TraceLog != "" {
		f, err := os.OpenFile(cfg.TraceLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("trace log: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return f.Close() })
		tracer = append(tracer, core.NewJSONTracer(f, nil))
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{metrics, core.NewExpvarMetricsRecorder(expvarName)}),
		core.WithTracer(tracer),
		core.WithFundTransferer(a.book),
		core.WithEventSink(sinks),
		core.WithDocumentStore(docs),
		core.WithRegistrationPolicy(registrationPolicy),
		core.WithHashPolicy(hashPolicy),
		core.WithStrictItems(cfg.StrictItems),
		core.WithTransferTimeout(cfg.TransferTimeout),
	}
	if cfg.AuditLog {
		opts = append(opts, core.WithAuditRecorder(core.NewLogAuditRecorder(logger)))
	}
	a.svc = core.NewService(store, opts...)
	if err := a.svc.Bootstrap(ctx, regulators, digest); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	apiOpts := []httpapi.Option{
		httpapi.WithAccounts(a.book),
		httpapi.WithMetrics(reg),
		httpapi.WithDebugVars(),
		httpapi.WithLogger(logger),
	}
	if cfg.DemoAccounts {
		apiOpts = append(apiOpts, httpapi.WithDeposits())
	}
	a.handler = httpapi.NewServer(a.svc, apiOpts...).Routes()
	return a, nil
}

// depositDemoFunds credits entries of the form "0xidentity=amount".
func depositDemoFunds(book *funds.Book, entries []string) error {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rawID, rawAmount, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("LEDGER_DEMO_FUNDS: %q is not identity=amount", entry)
		}
		id, err := domain.ParseIdentity(rawID)
		if err != nil {
			return fmt.Errorf("LEDGER_DEMO_FUNDS: %w", err)
		}
		amount, err := strconv.ParseUint(strings.TrimSpace(rawAmount), 10, 64)
		if err != nil {
			return fmt.Errorf("LEDGER_DEMO_FUNDS: amount %q: %w", rawAmount, err)
		}
		if err := book.Deposit(id, amount); err != nil {
			return fmt.Errorf("LEDGER_DEMO_FUNDS: %w", err)
		}
	}
	return nil
}

// run serves the API until ctx is cancelled, then drains connections.
func run(ctx context.Context, cfg config.Ledger, logger *slog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("ledgerd listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "documents", cfg.BlobDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("ledgerd shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, a.close(closeCtx))
}
