// Command devapi serves the storefront REST contract from in-memory data so
// the client can run without the real backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/devapi"
	"github.com/example/storefront/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.Config{Level: "info", Format: cfg.Log.Format, Output: cfg.Log.Output}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	server, err := devapi.NewServer(devapi.Config{
		JWTSecret:     cfg.DevAPI.JWTSecret,
		TokenTTL:      cfg.DevAPI.TokenTTL,
		PaymentURL:    cfg.DevAPI.PaymentURL,
		AdminEmail:    cfg.DevAPI.AdminEmail,
		AdminPassword: cfg.DevAPI.AdminPassword,
	}, devapi.NewCatalog(devapi.SeedProducts()), log)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.DevAPI.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("development API started",
			zap.String("addr", cfg.DevAPI.Addr),
			zap.String("payment_url", cfg.DevAPI.PaymentURL),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("shutdown did not complete cleanly", zap.Error(err))
	}
}
