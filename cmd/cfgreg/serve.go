package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/cfgregistry/internal/audit"
	"github.com/alfredjeanlab/cfgregistry/internal/config"
	"github.com/alfredjeanlab/cfgregistry/internal/events"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
	"github.com/alfredjeanlab/cfgregistry/internal/server"
	"github.com/alfredjeanlab/cfgregistry/internal/store/postgres"
	"github.com/alfredjeanlab/cfgregistry/internal/store/sqldb"
	"github.com/alfredjeanlab/cfgregistry/internal/store/sqlite"
	regsync "github.com/alfredjeanlab/cfgregistry/internal/sync"
	"github.com/alfredjeanlab/cfgregistry/internal/tracing"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/health"
)

const healthCheckInterval = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the registry HTTP and gRPC servers",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		logger, logCloser, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logCloser.Close()
		slog.SetDefault(logger)

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		logger.Info("store opened", "backend", cfg.Store)

		publisher, err := events.NewPublisher(cfg.NATSURL)
		if err != nil {
			store.Close()
			return err
		}
		if cfg.NATSURL != "" {
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("events disabled (CFGREG_NATS_URL not set)")
		}

		tp, err := tracing.NewProvider(cfg.Tracing)
		if err != nil {
			publisher.Close()
			store.Close()
			return err
		}
		if tp.Enabled() {
			logger.Info("tracing enabled", "exporter", cfg.Tracing.Exporter)
		}

		auditWriters := audit.MultiWriter{audit.LogWriter{Logger: logger}}
		if cfg.NATSURL != "" {
			auditWriters = append(auditWriters, audit.EventWriter{Publisher: publisher})
		}

		reg := registry.New(store, registry.Options{
			Publisher:          publisher,
			Audit:              audit.NewSink(auditWriters),
			Logger:             logger,
			Tracer:             tp.Tracer(),
			GlobalConfigTarget: cfg.GlobalConfigTarget(),
		})
		registryServer := server.NewRegistryServer(reg, store, logger)

		// gRPC: health and reflection, kept in line with store reachability.
		healthServer := health.NewServer()
		grpcServer := server.NewGRPCServer(healthServer, cfg.AuthToken, logger)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			_ = tp.Shutdown(context.Background())
			publisher.Close()
			store.Close()
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		monitorDone := make(chan struct{})
		go func() {
			defer close(monitorDone)
			server.NewHealthMonitor(healthServer, store, healthCheckInterval, logger).Run(ctx)
		}()

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           registryServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(ctx, cfg, store, logger)

		if cfg.AuthToken == "" {
			logger.Warn("authentication disabled (CFGREG_AUTH_TOKEN not set)")
		}
		logger.Info("registry server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		cancel()
		<-monitorDone
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("error flushing traces", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func openStore(ctx context.Context, cfg *config.Config) (*sqldb.DB, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return postgres.New(ctx, cfg.DatabaseURL, postgres.Pool{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
	case config.StoreSQLite:
		return sqlite.New(cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// startSync starts the snapshot scheduler when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(ctx context.Context, cfg *config.Config, src regsync.Source, logger *slog.Logger) *regsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []regsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := regsync.NewS3Destination(
			ctx,
			cfg.SyncS3Bucket,
			cfg.SyncS3Key,
			cfg.SyncS3Region,
			cfg.SyncS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncGitRepo != "" {
		dests = append(dests, regsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	scheduler := regsync.NewScheduler(src, dests, cfg.SyncInterval, logger)
	scheduler.Start(ctx)
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}

func init() {
	serveCmd.Flags().String("config", "", "config file (YAML, TOML or JSON); environment variables take precedence")
}
