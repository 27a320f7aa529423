package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"sqlite-browser/internal/browser/api"
	"sqlite-browser/internal/browser/hub"
	"sqlite-browser/internal/browser/middleware"
	"sqlite-browser/internal/config"
	"sqlite-browser/internal/email"
	"sqlite-browser/internal/storage"
	"sqlite-browser/internal/worker"
)

var version = "dev"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "SQLite Browser %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  browser [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SERVER_PORT   HTTP port (default 8080)\n")
		fmt.Fprintf(os.Stderr, "  DB_DRIVER     sqlite3, sqlite, mysql, postgres or mongo\n")
		fmt.Fprintf(os.Stderr, "  DB_PATH       database opened for every new client\n")
		fmt.Fprintf(os.Stderr, "  STORAGE_TYPE  local or s3\n")
	}

	dbPath := flag.String("db", "", "Database opened for every new client (overrides DB_PATH)")
	dbDriver := flag.String("driver", "", "Database driver (overrides DB_DRIVER)")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SQLite Browser %s\n", version)
		os.Exit(0)
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 0. Load Config
	cfg := config.Load()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *dbDriver != "" {
		cfg.DBDriver = *dbDriver
	}

	slog.Info("Starting SQLite Browser", "env", cfg.AppEnv, "driver", cfg.DBDriver, "db", cfg.DBPath)

	// 1. Initialize Storage
	store, err := storage.New(storage.Options{
		Type:      cfg.StorageType,
		LocalPath: cfg.LocalStoragePath,
		Region:    cfg.AWSRegion,
		Bucket:    cfg.S3Bucket,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
		AccessKey: cfg.AWSAccessKeyID,
		SecretKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// 2. Start Export Workers
	var notifier email.Sender = email.NewLogSender(logger)
	if cfg.SMTPHost != "" {
		notifier = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	pool := worker.NewPool(cfg.WorkerCount, cfg.MaxDBConcurrency, worker.ReadOnlyOpener, store, cfg.Compression).
		WithNotifier(notifier).
		WithRetention(cfg.ExportRetention)
	pool.Start()
	defer pool.Stop()

	// 3. Initialize Hub & Handlers
	h := hub.NewHub()
	handler := api.NewHandler(h, pool, api.Settings{
		Driver:         cfg.DBDriver,
		DefaultPath:    cfg.DBPath,
		ReadOnly:       cfg.ReadOnly,
		RetryWait:      cfg.RetryWait,
		ExportTimeout:  cfg.DefaultTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// 4. Setup Routes & Middleware
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           middleware.CORS(cfg.AllowedOrigins, cfg.AppEnv)(handler.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Browser listening", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		pool.Stop()
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
