package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onboard/internal/onboarding/backend"
	"onboard/internal/onboarding/handler"
	onboardingmetrics "onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/session"
	"onboard/internal/onboarding/steps"
	"onboard/internal/onboarding/store/snapshot"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/logger"
	platformmetrics "onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	redisclient "onboard/internal/platform/redis"
	audit "onboard/pkg/platform/audit"
	"onboard/pkg/platform/audit/publisher"
	kafkaaudit "onboard/pkg/platform/audit/store/kafka"
	auditmemory "onboard/pkg/platform/audit/store/memory"
	"onboard/pkg/platform/circuit"
	"onboard/pkg/platform/httputil"
)

// main wires the wizard engine behind the console API and keeps the server
// lifecycle small. Wizard logic lives in internal/onboarding.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	wizardMetrics := onboardingmetrics.NewWithRegistry(reg)
	httpMetrics := platformmetrics.New(reg)

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var snapshots session.SnapshotStore = snapshot.New()
	if rdb != nil {
		defer rdb.Close()
		snapshots = snapshot.NewRedis(rdb.Client, snapshot.WithTTL(cfg.Session.TTL))
		log.Info("session snapshots in redis", "ttl", cfg.Session.TTL)
	}

	auditStore, closeAudit, err := newAuditStore(cfg.Audit)
	if err != nil {
		return err
	}
	defer closeAudit()
	auditor := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.AsyncBuffer),
		publisher.WithLogger(log),
	)
	defer auditor.Close()

	breaker := circuit.New("onboarding-backend",
		circuit.WithFailureThreshold(cfg.Backend.FailureThreshold),
		circuit.WithCooldown(cfg.Backend.Cooldown),
	)
	client, err := backend.New(cfg.Backend.URL,
		backend.WithTokenSource(backend.StaticToken(cfg.Backend.Token)),
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithBreaker(breaker),
		backend.WithMetrics(wizardMetrics),
		backend.WithLogger(log),
	)
	if err != nil {
		return err
	}

	manager := session.NewManager(client,
		session.WithCatalog(steps.NewCatalog(cfg.Rules.NoDirectorTypes)),
		session.WithSnapshotStore(snapshots),
		session.WithLogger(log),
		session.WithMetrics(wizardMetrics),
		session.WithAuditor(auditor),
		session.WithFinalizeDelay(cfg.Session.FinalizeDelay),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(httpMetrics, routePattern))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok", "backend_circuit_open": client.BreakerOpen()}
		if rdb != nil {
			if err := rdb.Health(r.Context()); err != nil {
				status["status"] = "degraded"
				status["redis"] = err.Error()
				httputil.WriteJSON(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	})

	validator := middleware.NewHMACValidator(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOperator(validator, log))
		handler.New(manager, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting onboarding console API", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	manager.Shutdown(shutdownCtx)
	log.Info("shutdown complete")
	return nil
}

// newAuditStore picks kafka when brokers are configured.
func newAuditStore(cfg config.Audit) (audit.Store, func(), error) {
	if len(cfg.Brokers) == 0 {
		return auditmemory.NewInMemoryStore(), func() {}, nil
	}
	store, err := kafkaaudit.New(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
