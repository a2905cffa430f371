package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/pocketmoney/internal/config"
	"github.com/MrJamesThe3rd/pocketmoney/internal/database"
	"github.com/MrJamesThe3rd/pocketmoney/internal/events"
	"github.com/MrJamesThe3rd/pocketmoney/internal/events/kafka"
	pmHttp "github.com/MrJamesThe3rd/pocketmoney/internal/http"
	accountHandler "github.com/MrJamesThe3rd/pocketmoney/internal/http/account"
	importHandler "github.com/MrJamesThe3rd/pocketmoney/internal/http/importcsv"
	statementHandler "github.com/MrJamesThe3rd/pocketmoney/internal/http/statement"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/store"
	"github.com/MrJamesThe3rd/pocketmoney/internal/statement"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	states, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher := ledger.Publisher(events.NewLogPublisher(slog.Default()))

	if len(cfg.Kafka.Brokers) > 0 {
		kp := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()

		publisher = events.Fanout{publisher, kp}
		slog.Info("publishing account updates to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	registry := ledger.NewRegistry(ledger.Options{
		NewAppender:   csvlog.Factory(cfg.Ledger.LogDir),
		Store:         states,
		Publisher:     publisher,
		Policy:        cfg.Policy(),
		LogTimeout:    cfg.Ledger.LogTimeout,
		CommitTimeout: cfg.Ledger.CommitTimeout,
		Location:      cfg.Location(),
		Logger:        slog.Default(),
	})

	defer func() {
		if err := registry.Close(); err != nil {
			slog.Error("failed to close ledgers", "error", err)
		}
	}()

	if err := registry.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore accounts: %w", err)
	}

	var (
		statementService = statement.NewService(registry, cfg.Ledger.LogDir)
	)

	var (
		accountH   = accountHandler.NewHandler(registry, cfg.Ledger.LogDir)
		importH    = importHandler.NewHandler(registry)
		statementH = statementHandler.NewHandler(statementService)
	)

	router, err := pmHttp.New(pmHttp.Options{
		RateLimit:      cfg.Server.RateLimit,
		AllowedOrigins: cfg.Server.CORSOrigins,
	}, accountH, importH, statementH)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "app", cfg.App.Name, "port", srv.Addr, "policy", cfg.Policy())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.StateStore, func(), error) {
	if cfg.Store.Driver != config.StorePostgres {
		return store.NewMemory(), func() {}, nil
	}

	db, err := database.New(ctx, cfg.ConnectionString(), database.PoolConfig{MaxOpenConns: cfg.DB.MaxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store.New(db), closeDB(db), nil
}

func closeDB(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}
}
