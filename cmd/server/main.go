package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcees-validator/internal/config"
	"tcees-validator/internal/handler"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"
)

const shutdownTimeout = 70 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container := config.NewContainer()
	cfg := container.GetConfig()
	appLogger := container.GetLogger()

	if cfg.GetAPISecret() == "" {
		appLogger.Warn("TCEES_API_SECRET is not set; /validate is open to any caller")
	}

	// Handlers
	validationHandler := handler.NewValidationHandler(
		container.GetValidator(),
		cfg,
		appLogger,
	)

	secretMiddleware := handler.NewAPISecretMiddleware(
		cfg.GetAPISecret(),
		appLogger,
	)

	// Router
	router := handler.NewRouter(
		validationHandler,
		secretMiddleware.Middleware,
		handler.RequestIDMiddleware(appLogger),
		cfg.GetAllowedOrigins(),
	)

	// start server
	server := &http.Server{
		Addr:              ":" + cfg.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	go func() {
		appLogger.Info("Server listening", "address", server.Addr, "portal", cfg.GetPortalURL())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	// in-flight validations may poll the portal for close to a minute
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Graceful shutdown failed", err)
		_ = server.Close()
	}
	if err := container.Close(); err != nil {
		appLogger.Error("Failed to close browser", err)
	}

	appLogger.Info("Server exited")
}
