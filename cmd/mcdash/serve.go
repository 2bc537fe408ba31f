package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/mcdash"
	"github.com/jpalmerr/mcdash/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the mcdash dashboard server.

The server will:
  - Load configuration from the YAML file or flags
  - Fetch the backend's /config and poll the configured status sources
  - Serve the dashboard UI, /api/view, /api/sse and /healthz on the port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  mcdash serve -c mcdash.yaml
  mcdash serve --upstream http://localhost:8000 --port 9090
  MCDASH_UPSTREAM=http://backend:8000 mcdash serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
	serveCmd.Flags().String("upstream", "", "dashboard backend base URL (overrides the config file)")
	serveCmd.Flags().Int("port", 0, "HTTP port (overrides the config file)")
}

func runServe(cmd *cobra.Command, args []string) error {
	v, err := settings(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(v.GetString("log-level"), v.GetString("log-format"), os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"upstream", cfg.Upstream.BaseURL,
		"primary", cfg.Primary.Path,
		"sources", len(cfg.Sources),
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"config_interval", cfg.ConfigInterval.Duration().String(),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, mcdash.WithLogger(logger))

	d, err := mcdash.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
