package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/logger"
	"inkwell/internal/router"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.GinMode)

	// Initialize Database
	if err := db.Init(cfg.DatabaseURL); err != nil {
		logger.L().Fatal("Database init failed", zap.Error(err))
	}
	defer db.Close()

	svc, err := services.New(db.DB, services.OptionsFromConfig(cfg))
	if err != nil {
		logger.L().Fatal("Services init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 后台计数修复队列
	go svc.ReconcileQueue.Run(ctx)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(router.Deps{Config: cfg, Services: svc}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Inkwell server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
