// cmd/pos/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"posnexus/internal/catalog"
	"posnexus/internal/checkout"
	"posnexus/internal/clients"
	"posnexus/internal/config"
	"posnexus/internal/db"
	"posnexus/internal/events"
	"posnexus/internal/notify"
	"posnexus/internal/obs"
	"posnexus/internal/offline"
	"posnexus/internal/scanner"
	"posnexus/internal/terminal"
)

func main() {
	cfg := config.Load()

	logger, err := obs.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := obs.SetupTracing(ctx, "pos-terminal", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	// --- DB ---
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer conn.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(conn, logger); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}
	store := offline.NewPostgresStore(conn, logger)

	// --- collaborators ---
	sales := clients.NewSalesClient(cfg.SalesServiceURL, logger)
	probe := clients.NewConnectivityProbe(cfg.SalesServiceURL, sales, cfg.ProbeInterval)
	probe.SetForceOffline(cfg.ForceOffline)

	var source catalog.Source = clients.NewCatalogClient(cfg.CatalogServiceURL)
	if cfg.CatalogSource == config.CatalogSourcePostgres {
		source = catalog.NewRepository(conn)
	}

	var upstream offline.Upstream = sales
	if cfg.SyncUpstream == config.SyncUpstreamAMQP {
		amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("amqp connect", zap.Error(err))
		}
		defer amqpConn.Close()

		publisher, err := events.NewPublisher(amqpConn, "pos-terminal")
		if err != nil {
			logger.Fatal("amqp publisher", zap.Error(err))
		}
		defer publisher.Close()
		upstream = publisher
	}

	// --- terminal ---
	reconciler := checkout.NewReconciler(probe, sales, store, logger,
		checkout.WithCommitTimeout(cfg.CommitTimeout),
	)
	board := notify.NewBoard(cfg.NotificationTTL, logger)
	term := terminal.New(source, reconciler, board, scanner.NewListener(), logger,
		terminal.WithBurstGap(cfg.BurstGap),
		terminal.WithMinCodeLength(cfg.MinCodeLength),
	)

	if _, err := term.ReloadCatalog(ctx); err != nil {
		logger.Warn("initial catalog load failed, starting with an empty catalog", zap.Error(err))
	}
	if err := term.Mount(ctx); err != nil {
		logger.Fatal("keyboard listener", zap.Error(err))
	}

	syncer := offline.NewSyncer(store, upstream, probe, logger,
		offline.WithInterval(cfg.SyncInterval),
		offline.WithBatchSize(cfg.SyncBatchSize),
		offline.WithRate(cfg.SyncRatePerSec),
	)
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		syncer.Run(ctx)
	}()

	// --- HTTP ---
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           terminal.NewRouter(terminal.NewHandler(term, store), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := term.Close(); err != nil {
		logger.Warn("terminal close", zap.Error(err))
	}
	<-syncDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
