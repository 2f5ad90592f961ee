package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nyashahama/cognitive-guardian-backend/internal/api"
	"github.com/nyashahama/cognitive-guardian-backend/internal/app"
	"github.com/nyashahama/cognitive-guardian-backend/internal/config"
	"github.com/nyashahama/cognitive-guardian-backend/internal/store"
	"github.com/nyashahama/cognitive-guardian-backend/internal/worker"
)

// historyService is the gRPC health service name that reports whether the
// history database is reachable.
const historyService = "guardian.history"

func main() {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	logger := app.NewLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// Root context cancelled by OS signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Model, pipeline, retrieval ────────────────────────────────────────────
	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Warn("close components", "error", err)
		}
	}()

	// ── Health ────────────────────────────────────────────────────────────────
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// ── History (optional) ────────────────────────────────────────────────────
	// Without DATABASE_URL the history routes answer 503 and evaluations are
	// not recorded.
	var (
		history  api.HistoryStore
		enqueuer worker.Enqueuer
		runner   *worker.Runner
	)
	if cfg.DatabaseURL != "" {
		st, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer st.Close()
		logger.Info("database connected", "dialect", st.Dialect())

		job := worker.NewJob(st, cfg.HistoryLimit, logger)
		runner = worker.NewRunner(job, worker.RunnerConfig{
			Workers:    cfg.WorkerCount,
			JobTimeout: cfg.JobTimeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)

		history = st
		enqueuer = runner
		healthSrv.SetServingStatus(historyService, healthpb.HealthCheckResponse_SERVING)
		go watchStore(ctx, st, healthSrv, logger)
	} else {
		logger.Warn("DATABASE_URL not set; history disabled")
		healthSrv.SetServingStatus(historyService, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		comps.Pipeline,
		comps.Engine,
		comps.Model,
		comps.Model,
		history,
		enqueuer,
		api.Config{Env: cfg.Env, HistoryLimit: cfg.HistoryLimit},
		logger,
	)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // video ranking can be slow on a cold model
		IdleTimeout:  120 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	// ── Listener ──────────────────────────────────────────────────────────────
	// One port serves both: gRPC health checks are split off by content-type,
	// everything else is HTTP.
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	// The worker gets its own context so it keeps draining while in-flight
	// HTTP requests finish enqueueing.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if runner != nil {
		go func() {
			runner.Start(workerCtx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	serveErr := make(chan error, 3)
	go func() { serveErr <- grpcSrv.Serve(grpcL) }()
	go func() { serveErr <- srv.Serve(httpL) }()
	go func() { serveErr <- mux.Serve() }()
	logger.Info("server listening", "addr", lis.Addr().String())

	// Block until either a signal arrives or a server dies unexpectedly.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	healthSrv.Shutdown()

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	_ = lis.Close()

	// Nothing enqueues any more; let the workers write what is queued.
	stopWorkers()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not drain before the shutdown deadline")
	}

	logger.Info("shutdown complete")
	return runErr
}

// watchStore pings the database every 30 seconds and mirrors the result into
// the gRPC health status of the history service.
func watchStore(ctx context.Context, st *store.Store, hs *health.Server, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := st.Ping(pingCtx)
			cancel()

			if ok := err == nil; ok != serving {
				serving = ok
				status := healthpb.HealthCheckResponse_SERVING
				if !ok {
					status = healthpb.HealthCheckResponse_NOT_SERVING
					logger.Error("database unreachable", "error", err)
				} else {
					logger.Info("database reachable again")
				}
				hs.SetServingStatus(historyService, status)
			}
		}
	}
}
