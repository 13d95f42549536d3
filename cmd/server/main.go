package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/animechat/backend/internal/api"
	"github.com/animechat/backend/internal/config"
	"github.com/animechat/backend/internal/core"
	"github.com/animechat/backend/internal/store"
)

func main() {
	config.LoadConfig()

	var logger *zap.Logger
	var err error
	if config.AppConfig.LogLevel == "DEBUG" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.String("database_url", config.AppConfig.DatabaseURL),
			zap.Error(err))
	}
	defer dbStore.Close()

	llmService := core.NewLLMService(config.AppConfig.GroqAPIKey, logger)
	chatService := core.NewChatService(dbStore, llmService, logger)

	apiHandler := api.NewAPIHandler(dbStore, chatService, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second, // completion calls can run long
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting gracefully")
}
