// Command verimediad starts the media manipulation analysis daemon.
// Usage: verimediad [-config path/to/config.toml]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/verimedia/verimedia/internal/analyzers"
	"github.com/verimedia/verimedia/internal/app"
	"github.com/verimedia/verimedia/internal/config"
	"github.com/verimedia/verimedia/internal/explain"
	"github.com/verimedia/verimedia/internal/fusion"
	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/jobstore"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/metadata"
	"github.com/verimedia/verimedia/internal/quota"
	"github.com/verimedia/verimedia/internal/server"
	"github.com/verimedia/verimedia/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default ~/.config/verimedia/config.toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewStdoutLogger("verimediad")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, err := quota.NewLedger(quota.Config{
		Secret:               []byte(cfg.Quota.Secret),
		GuestCredits:         cfg.Quota.GuestCredits,
		AuthenticatedCredits: cfg.Quota.AuthenticatedCredits,
	}, logger)
	if err != nil {
		log.Fatalf("quota: %v", err)
	}

	fuser, err := fusion.NewEngine(nil, logger)
	if err != nil {
		log.Fatalf("fusion: %v", err)
	}
	explainer, err := explain.NewAggregator(logger)
	if err != nil {
		log.Fatalf("explain: %v", err)
	}

	blobs, err := buildBlobStore(cfg, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	results, err := buildResultStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("results: %v", err)
	}
	defer results.Close()

	orch, err := app.NewOrchestrator(
		&app.Config{
			AnalyzerTimeout: time.Duration(cfg.Pipeline.AnalyzerTimeoutSeconds) * time.Second,
			EventBuffer:     app.DefaultConfig().EventBuffer,
		},
		analyzers.Default(logger),
		blobs,
		metadata.NewExtractor(logger),
		results,
		fuser,
		explainer,
		logger,
	)
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}

	srv, err := server.NewServer(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		MaxUploadBytes: cfg.Server.MaxUploadMiB << 20,
	}, orch, ledger, nil, logger)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	httpSrv := srv.HTTPServer()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", logging.Field{Key: "addr", Value: cfg.Server.ListenAddr})
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
}

func buildBlobStore(cfg *config.Config, logger logging.Logger) (interfaces.BlobStore, error) {
	fsStore, err := storage.NewFSStore(cfg.Storage.Root, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Backend != "minio" {
		return fsStore, nil
	}
	return storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.Storage.Minio.Endpoint,
		AccessKey: cfg.Storage.Minio.AccessKey,
		SecretKey: cfg.Storage.Minio.SecretKey,
		Bucket:    cfg.Storage.Minio.Bucket,
		UseSSL:    cfg.Storage.Minio.UseSSL,
	}, fsStore, logger)
}

func buildResultStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (interfaces.ResultStore, error) {
	ttl := time.Duration(cfg.Results.TTLMinutes) * time.Minute
	switch cfg.Results.Backend {
	case "sqlite":
		return jobstore.NewSQLiteStore(cfg.Results.SQLitePath, logger)
	case "redis":
		return jobstore.NewRedisStore(ctx, cfg.Results.RedisURL, ttl, logger)
	default:
		return jobstore.NewMemoryStore(ttl, logger), nil
	}
}
