package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"questbudget/internal/advisor"
	"questbudget/internal/amqp"
	"questbudget/internal/auth"
	"questbudget/internal/config"
	apphttp "questbudget/internal/http"
	"questbudget/internal/services"
	"questbudget/internal/storage"
)

func main() {
	// Load .env for local development; harmless when absent.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional; purchases are settled either way and the worker
	// backfills exports.
	var publisher services.PurchasePublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, relying on worker backfill")
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret)
	server := apphttp.NewServer(
		services.NewAuthService(repo, issuer),
		services.NewMonthService(repo),
		services.NewTaskService(repo),
		services.NewShopService(repo, publisher),
		services.NewContextBuilder(repo),
		advisor.NewClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL),
		issuer,
		apphttp.Options{
			CORSOrigins:      cfg.CORSOrigins,
			DebugChatContext: cfg.DebugChatContext,
		},
	)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        server.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("starting questbudget server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
