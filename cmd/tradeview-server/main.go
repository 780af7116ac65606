package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"tradeview/internal/api"
	"tradeview/internal/app"
	"tradeview/internal/config"
	"tradeview/internal/util"
)

var version = "0.1.0"

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	defer a.Close()

	srv := api.NewServer(cfg.Server, api.Deps{
		Registry:  a.Registry,
		Runner:    a.Runner,
		Feed:      a.Feed,
		ParamSets: a.ParamSets,
		Runs:      a.DB,
		Log:       logger,
		Version:   version,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("tradeview-server starting",
		"host", cfg.Server.Host, "port", cfg.Server.Port, "grpc_port", cfg.Server.GRPCPort)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		return
	}
	logger.Info("tradeview-server stopped")
}
