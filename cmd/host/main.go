package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/junsooki/AirDesk/internal/config"
	"github.com/junsooki/AirDesk/internal/logging"
	"github.com/junsooki/AirDesk/internal/permissions"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.ParseHostFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	logger.Info("AirDesk host starting",
		"id", cfg.HostID,
		"listen", cfg.Listen,
		"signaling", cfg.SignalingURL,
		"capture", cfg.Capture)

	if cfg.Capture == config.CaptureScreen {
		if err := permissions.Ensure(true, logger); err != nil {
			return err
		}
	}

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err = srv.Run(ctx)
	logger.Info("host stopped")
	return err
}
