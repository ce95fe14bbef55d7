package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"waste-bot/api/internal/app"
	"waste-bot/api/internal/config"
	"waste-bot/api/internal/guide"
	"waste-bot/api/internal/handle"
	"waste-bot/api/internal/httpserver"
	"waste-bot/api/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate("server"); err != nil {
		return err
	}

	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	table, err := guide.LoadTable(cfg.Model.GuideTablePath)
	if err != nil {
		return err
	}
	engines, def, err := app.BuildEngines(ctx, cfg, infra.Cache, log)
	if err != nil {
		return err
	}

	h := handle.New(engines, def, table, cfg.Model.Threshold)
	h.Metrics = infra.Metrics
	h.Checks = infra.Checks(engines)
	h.Stats = infra.Stats()
	h.Logger = log

	r := httpserver.NewRouter(h, httpserver.Options{VideoDir: cfg.Server.VideoDir, Logger: log})
	if err := httpserver.Serve(ctx, "0.0.0.0:"+cfg.Server.Port, r, log); err != nil {
		log.Error("http server failed", zap.Error(err))
		return err
	}
	log.Info("server exited")
	return nil
}
