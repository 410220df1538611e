package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/drinkshelf/internal/buildinfo"
	"github.com/dmitrijs2005/drinkshelf/internal/devapi"
	"github.com/dmitrijs2005/drinkshelf/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := devapi.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	logger := logging.NewTintLogger(os.Stderr, cfg.LogLevel)
	srv := devapi.NewServer(cfg, devapi.NewUsers(), logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error(ctx, "dev api stopped", "error", err)
		os.Exit(1)
	}
}
