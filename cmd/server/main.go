package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"camdetect/internal/app"
	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/service/device"
	"camdetect/internal/service/storage"
)

func main() {
	cliApp := &cli.App{
		Name:   "camdetect",
		Usage:  "live webcam object detection with a local browser viewer",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "open the camera, run detection and serve the viewer page",
				Action: serve,
			},
			{
				Name:   "devices",
				Usage:  "list video input devices and the CAMERA_DEVICE value that selects each",
				Action: listDevices,
			},
			{
				Name:   "reindex",
				Usage:  "record capture files found in CAPTURE_DIR that are missing from the journal",
				Action: reindex,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	runErr := application.Run(ctx)
	if err := application.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func listDevices(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logr, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logr.Close()

	enumerator := device.NewEnumerator(device.NewMediaDevicesSource(), logr)
	devices, err := enumerator.Enumerate(c.Context)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Fprintln(c.App.Writer, "No video input devices found")
		return nil
	}
	fmt.Fprintln(c.App.Writer, "CAMERA_DEVICE\tLABEL")
	for _, d := range devices {
		path := d.Path
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", path, d.Label)
	}
	return nil
}

func reindex(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logr, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logr.Close()

	// reindex works on the journal whether or not the server records new captures
	cfg.CaptureJournal = true
	journal, err := storage.OpenJournal(cfg, logr)
	if err != nil {
		return err
	}
	defer journal.Close()

	store := journal.Store
	added, skipped, err := store.Reindex()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Recorded %d capture(s) from %s, skipped %d\n", added, store.Directory(), skipped)
	return nil
}
