package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/junsooki/AirDesk/internal/config"
	"github.com/junsooki/AirDesk/internal/decoder"
	"github.com/junsooki/AirDesk/internal/display"
	"github.com/junsooki/AirDesk/internal/frame"
	"github.com/junsooki/AirDesk/internal/logging"
	"github.com/junsooki/AirDesk/internal/protocol"
	"github.com/junsooki/AirDesk/internal/renderer"
	"github.com/junsooki/AirDesk/internal/viewer"
)

const keepAliveInterval = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.ParseControllerFlags(os.Args[1:])
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
	settings, err := cfg.Stream.Settings()
	if err != nil {
		return err
	}

	logger.Info("AirDesk controller starting", "id", cfg.ControllerID, "url", cfg.URL,
		"signaling", cfg.SignalingURL, "host", cfg.HostID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	conn, closeConn, err := connect(connectCtx, cfg, logger)
	cancelConnect()
	if err != nil {
		return err
	}
	defer closeConn()

	// Frames only flow once client.Run starts, after disp is assigned.
	var disp *display.EbitenDisplay
	client := viewer.NewClient(conn, nil, logger)
	rend := renderer.New(renderer.Config{
		Decoder:      decoder.NewJPEGDecoder(),
		Acknowledger: client,
		OnUpdate:     func(r image.Rectangle) { disp.Invalidate(r) },
		Logger:       logger,
	})
	defer rend.Close()
	disp = display.NewEbitenDisplay(rend, client, windowTitle(cfg), logger)
	client.SetFrameHandler(rend)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("connection lost", "error", err)
		}
	}()
	go func() {
		if err := startStream(ctx, client, settings, byte(cfg.Display), logger); err != nil {
			logger.Error("start streaming", "error", err)
			cancel()
		}
	}()

	// Ebitengine must run on the main goroutine.
	err = disp.Run(ctx)
	_ = client.StopStreaming()
	return err
}

func startStream(ctx context.Context, client *viewer.Client, settings frame.StreamSettings, display byte, logger *slog.Logger) error {
	if err := client.SetStreamSettings(settings); err != nil {
		return err
	}
	info, err := client.GetDesktopInfo(ctx)
	if err != nil {
		return fmt.Errorf("desktop info: %w", err)
	}
	for i, s := range info.Screens {
		logger.Info("remote screen", "index", i, "adapter", s.AdapterName, "output", s.OutputName,
			"x", s.X, "y", s.Y, "width", s.Width, "height", s.Height)
	}
	epoch, err := client.StartStreaming(ctx, protocol.StreamTypeJPEG, display)
	if err != nil {
		return err
	}
	logger.Info("streaming", "display", display, "epoch", epoch)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := client.KeepAlive(); err != nil {
				return err
			}
		}
	}
}

func windowTitle(cfg *config.ControllerConfig) string {
	if cfg.URL != "" {
		return "AirDesk - " + cfg.URL
	}
	return "AirDesk - " + cfg.HostID
}
