package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/config"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/mockapi"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("Mock API server failed: %v", err)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: "json",
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		metricsServer := metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			logger.Infof("Starting metrics server on %s", metricsServer.Addr())
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	server := mockapi.New(cfg.MockAPI, logger)
	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
