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

	"github.com/joho/godotenv"

	"github.com/ConcealNetwork/conceal-faucet-api/config"
	"github.com/ConcealNetwork/conceal-faucet-api/env"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/abuse"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/bootstrap"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/claim"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/clientip"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/events"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/handlers"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/origin"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/session"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/wallet"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if os.Getenv(env.EnvGoEnvironment) != "production" {
			slog.Debug("no .env file found")
		}
	}

	configPath := os.Getenv(env.EnvConfigPath)
	if configPath == "" {
		configPath = "faucet.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := bootstrap.InitLogger(bootstrap.LoggerOptions{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("faucet terminated", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// The store client is process-wide: initialized once here, closed on
	// shutdown, shared by every request worker.
	store, err := bootstrap.InitStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.NewBus(logger)
	abuseLog, err := events.NewAbuseLogWriter(bus, cfg.AbuseLogPath, logger)
	if err != nil {
		return err
	}
	if err := abuseLog.Run(context.Background()); err != nil {
		return err
	}

	walletClient := wallet.NewClient(wallet.Options{
		RPCURL:  cfg.Wallet.RPCURL,
		Timeout: cfg.Wallet.Timeout,
		Fee:     cfg.Wallet.Fee,
		Mixin:   cfg.Wallet.Mixin,
		Address: cfg.Wallet.Address,
	})

	sessions := session.NewManager(store, cfg.Session.TTL)
	verifier := session.NewVerifier(sessions, cfg.Session.MinDwell, cfg.StrictOrigin)
	originGuard := origin.NewGuard(cfg.TrustedOrigins, cfg.StrictOrigin)
	limiter := abuse.NewRateLimiter(store, cfg.RateLimit.Max, cfg.RateLimit.Window)
	cooldown := abuse.NewCooldown(store, cfg.Cooldown.Window)
	resolver := clientip.NewResolver(cfg.TrustProxy)

	orchestrator := claim.NewOrchestrator(
		sessions, verifier, originGuard, limiter, cooldown,
		walletClient, bus, cfg.Payout, logger,
	)

	handler := handlers.New(cfg, orchestrator, resolver, walletClient, store, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("faucet listening", "port", cfg.Port, "environment", cfg.Environment)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}

	// Closing the bus terminates the abuse log subscription; the writer
	// drains what is left before the file closes.
	if err := bus.Close(); err != nil {
		logger.Error("failed to close event bus", "error", err)
	}
	if err := abuseLog.Close(); err != nil {
		logger.Error("failed to close abuse log", "error", err)
	}

	return nil
}
