package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"linkbird/api/internal/app"
	"linkbird/api/internal/config"
	"linkbird/api/internal/data"
	"linkbird/api/internal/metrics"
	"linkbird/api/internal/nav"
	"linkbird/api/internal/search"
	"linkbird/api/internal/session"
	"linkbird/api/internal/store"
	"linkbird/api/internal/util"
)

type repository interface {
	data.Repository
	app.Pinger
}

type snapshotSlots interface {
	session.SnapshotStore
	app.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("linkbird api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	ids, err := util.NewIDGenerator(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("id generator: %w", err)
	}
	m := metrics.New()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	slots, err := openSnapshotSlots(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = slots.Close() }()

	sessions, err := session.New(ctx, slots,
		session.StubAuthenticator{Delay: cfg.AuthLatency},
		session.WithLogger(logger.Named("session")),
		session.WithRecorder(m),
	)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	dataStore := data.New(repo, ids,
		data.WithLogger(logger.Named("data")),
		data.WithRecorder(m),
	)
	navStore := nav.New(logger.Named("nav"))

	var remote search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger.Named("meili"))
		defer meili.Close()
		remote = meili
	}
	searchService := search.NewService(remote, search.NewLocal(dataStore), logger.Named("search"))

	service := app.New(app.Dependencies{
		Session: sessions,
		Data:    dataStore,
		Nav:     navStore,
		Search:  searchService,
		Metrics: m,
		Checks: map[string]app.Pinger{
			"repository": repo,
			"session":    slots,
		},
		Logger: logger,
	})
	service.Start()
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger.Named("http"))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// event streams stay open; handlers bound their own work
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("linkbird api listening",
			zap.String("addr", cfg.Addr),
			zap.String("repository", cfg.Repository),
			zap.String("session_backend", cfg.SessionBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}

func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository, func(), error) {
	switch cfg.Repository {
	case "postgres":
		pg, err := store.OpenPostgresStore(ctx, cfg.DatabaseURL, cfg.MigrationsDir, logger.Named("postgres"))
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres repository: %w", err)
		}
		return pg, func() { _ = pg.DB().Close() }, nil
	default:
		mem := store.NewMemoryRepository(store.Latency{
			Fetch:  cfg.FetchLatency,
			Write:  cfg.WriteLatency,
			Status: cfg.StatusLatency,
		})
		return mem, func() {}, nil
	}
}

func openSnapshotSlots(ctx context.Context, cfg config.Config) (snapshotSlots, error) {
	switch cfg.SessionBackend {
	case "redis":
		slots, err := session.NewRedisSnapshotStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis session slot: %w", err)
		}
		return slots, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.SessionPath), 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		slots, err := session.NewSQLiteSnapshotStore(ctx, cfg.SessionPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite session slot: %w", err)
		}
		return slots, nil
	}
}
