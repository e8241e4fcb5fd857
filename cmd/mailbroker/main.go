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

	"github.com/redis/go-redis/v9"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/mailbroker/internal/adapter/driven/inboxcheck"
	"github.com/ericfisherdev/mailbroker/internal/adapter/driven/memory"
	"github.com/ericfisherdev/mailbroker/internal/adapter/driven/otp"
	redisadapter "github.com/ericfisherdev/mailbroker/internal/adapter/driven/redis"
	sqliteadapter "github.com/ericfisherdev/mailbroker/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/mailbroker/internal/adapter/driving/http"
	"github.com/ericfisherdev/mailbroker/internal/application"
	"github.com/ericfisherdev/mailbroker/internal/config"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"unit_price", cfg.UnitPrice.String(),
		"currency", cfg.Currency,
		"session_backend", cfg.SessionBackend,
		"verification", cfg.HasVerifier(),
		"operator_api", cfg.HasAdmin(),
		"encrypted_checks", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire persistent stores.
	ledger := sqliteadapter.NewBalanceRepo(db)
	inventory := sqliteadapter.NewInventoryRepo(db)
	topups := sqliteadapter.NewTopUpRepo(db)
	registry, err := sqliteadapter.NewCheckRegistryRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}

	// 6. Session store: in-process with a sweeper, or shared through redis.
	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	// 7. Inbox checker (nil disables the verify endpoint).
	var checker driven.InboxChecker
	if cfg.HasVerifier() {
		checker = inboxcheck.NewClient(cfg.VerifyURL, cfg.VerifyTimeout)
		slog.Info("inbox checker configured", "purpose", cfg.VerifyPurpose, "timeout", cfg.VerifyTimeout)
	} else {
		slog.Info("no verification endpoint configured, check requests will be refused")
	}

	// 8. Application services.
	logger := slog.Default()
	svc := httphandler.Services{
		Dispense:  application.NewDispenseService(ledger, inventory, registry, logger),
		Checks:    application.NewCheckService(registry, checker, cfg.VerifyPurpose, logger),
		Accounts:  application.NewAccountService(ledger, logger),
		Inventory: application.NewInventoryService(inventory),
		Sessions:  application.NewSessionService(sessions, topups, otp.NewGenerator(), cfg.UnitPrice, logger),
		TopUps:    application.NewTopUpService(topups, ledger, logger),
		Health:    application.NewHealthService(inventory, cfg.LowStock),
	}

	accounts := make([]httphandler.PaymentAccountResponse, 0, len(cfg.PaymentAccounts))
	for _, a := range cfg.PaymentAccounts {
		accounts = append(accounts, httphandler.PaymentAccountResponse{Name: a.Name, Number: a.Number})
	}

	// 9. HTTP handler with middleware.
	apiHandler := httphandler.NewHandler(svc, httphandler.Options{
		AdminToken:      cfg.AdminToken,
		Currency:        cfg.Currency,
		PaymentAccounts: accounts,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.VerifyTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("mailbroker started", "listen_addr", cfg.ListenAddr)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 11. Graceful shutdown: let in-flight dispenses finish their compensation.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newSessionStore builds the configured SessionStore and returns a cleanup func.
func newSessionStore(ctx context.Context, cfg *config.Config) (driven.SessionStore, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}

		slog.Info("redis session store connected", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
		return redisadapter.NewSessionStore(client, cfg.SessionTTL), func() {
			if err := client.Close(); err != nil {
				slog.Error("error closing redis client", "error", err)
			}
		}, nil

	default:
		store := memory.NewSessionStore(cfg.SessionTTL)
		go store.Start(ctx, time.Minute)
		slog.Info("in-memory session store started", "ttl", cfg.SessionTTL)
		return store, func() {}, nil
	}
}
