// Package main is the entry point for the federated query API server.
// It wires the MySQL and InfluxDB adapters, the catalog, the LLM-backed
// intent extractor, the orchestrator, and the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fedquery/internal/api"
	"fedquery/internal/catalog"
	"fedquery/internal/config"
	internaldb "fedquery/internal/db"
	"fedquery/internal/db/repository"
	"fedquery/internal/domain"
	"fedquery/internal/engine"
	"fedquery/internal/intent"
	"fedquery/internal/llm"
	"fedquery/internal/plan"
	"fedquery/internal/service/answer"
	"fedquery/internal/service/history"
	"fedquery/internal/store/influx"
	"fedquery/internal/store/mysql"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file (if present); real environment variables win.
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Store adapters.
	mysqlStore, err := mysql.New(cfg.MySQL, logger)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	defer mysqlStore.Close()

	influxStore, err := influx.New(cfg.Influx, logger)
	if err != nil {
		return fmt.Errorf("influxdb: %w", err)
	}
	defer influxStore.Close()

	// Warm up both stores concurrently. An unreachable store is logged, not
	// fatal: it may come up later, and transient failures retry per query.
	warmup := func(name string, s domain.StorePinger) func() error {
		return func() error {
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			defer pingCancel()
			if err := s.Ping(pingCtx); err != nil {
				logger.Warn("store unreachable at startup", "store", name, "error", err)
				return nil
			}
			logger.Info("store reachable", "store", name)
			return nil
		}
	}
	var g errgroup.Group
	g.Go(warmup("mysql", mysqlStore))
	g.Go(warmup("influxdb", influxStore))
	_ = g.Wait()

	// Catalog: a YAML file when configured, otherwise introspect the live
	// stores with links declared in the environment.
	var source domain.CatalogSource
	if cfg.CatalogFile != "" {
		source = &catalog.FileSource{Path: cfg.CatalogFile}
		logger.Info("catalog from file", "path", cfg.CatalogFile)
	} else {
		links, err := catalog.ParseLinks(cfg.CatalogLinks)
		if err != nil {
			return fmt.Errorf("CATALOG_LINKS: %w", err)
		}
		source = catalog.NewIntrospectSource(mysqlStore, influxStore, links, logger)
		logger.Info("catalog from store introspection", "links", len(links))
	}

	snap, err := catalog.Load(ctx, source)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	provider := catalog.NewProvider(snap, logger)
	logger.Info("catalog loaded", "version", snap.Version)

	if cfg.CatalogRefreshCron != "" {
		refresher, err := catalog.NewRefresher(cfg.CatalogRefreshCron, provider, source, logger)
		if err != nil {
			return fmt.Errorf("CATALOG_REFRESH_CRON: %w", err)
		}
		refresher.Start()
		defer refresher.Stop()
	}

	// Query history on SQLite, unless disabled.
	var historyRepo domain.HistoryRepository
	if cfg.HistoryEnabled() {
		writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.HistoryDBPath, 4)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer writeDB.Close()
		defer readDB.Close()

		if err := internaldb.RunMigrations(writeDB); err != nil {
			return fmt.Errorf("history migrations: %w", err)
		}
		historyRepo = repository.NewHistoryRepo(writeDB, readDB)
		logger.Info("query history enabled", "path", cfg.HistoryDBPath)
	} else {
		logger.Info("query history disabled")
	}
	historySvc := history.New(historyRepo)

	// The answer pipeline.
	extractor := intent.NewExtractor(llm.NewOpenAIClient(cfg.LLM, logger), logger)
	orch := engine.NewOrchestrator(
		[]domain.StoreExecutor{mysqlStore, influxStore},
		engine.Config{QueryTimeout: cfg.QueryTimeout, MaxRetries: cfg.MaxRetries},
		logger,
	)
	answerSvc := answer.New(provider, extractor, plan.NewBuilder(), orch, historyRepo, logger)

	handler := api.NewHandler(answerSvc, provider, historySvc, logger)
	router, err := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:          cfg.JWTSecret,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
		// The write timeout covers intent extraction plus both store
		// queries, so it is generous.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("federated query API listening", "addr", cfg.ListenAddr, "auth", cfg.AuthEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
