//go:build !lambda
// +build !lambda

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsclient "github.com/cyphera/grantpay/internal/client/aws"
	"github.com/cyphera/grantpay/internal/config"
	"github.com/cyphera/grantpay/internal/logger"
	"github.com/cyphera/grantpay/internal/server"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Secrets fall back to plain env vars when no AWS credentials are configured.
	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: secrets manager unavailable, using environment only: %v\n", err)
		secrets = awsclient.NewSecretsManagerClientWithAPI(nil)
	}

	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger first
	logger.InitLogger(cfg.Stage)
	defer logger.Sync()

	srv, err := server.New(ctx, cfg, server.Dependencies{}, logger.Log)
	if err != nil {
		logger.Fatal("Failed to initialize server", zap.Error(err))
	}
	defer srv.Close()

	if cfg.Stage == config.StageProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	srv.InitializeRoutes(r)

	go srv.RunSweeper(ctx, cfg.SweepInterval)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("stage", cfg.Stage))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
