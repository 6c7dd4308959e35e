package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"michatta/internal/config"
	"michatta/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(os.Getenv("MICHATTA_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logging.ErrorWithContext(logger, "michattad exited", "daemon_exit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory and whether another daemon holds the lock"))
		os.Exit(1)
	}
}
