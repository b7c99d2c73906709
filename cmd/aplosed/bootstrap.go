package main

import (
	"context"
	"fmt"

	"aplose/internal/config"
	"aplose/internal/daemon"
	"aplose/internal/logging"
	"aplose/internal/store"
)

// run serves until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if exists {
		logger.Info("configuration loaded", logging.String("path", resolved))
	} else {
		logger.Info("configuration file not found; using defaults", logging.String("path", resolved))
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}
	status := d.Status(ctx)
	logger.Info("aplosed ready",
		logging.String("address", status.Address),
		logging.Int("pid", status.PID),
		logging.String("database", status.DatabasePath),
		logging.String("lock_file", status.LockFilePath),
	)
	for _, check := range status.Checks {
		if !check.Passed {
			logger.Warn("startup check failed", logging.String("check", check.Name), logging.String("detail", check.Detail))
		}
	}

	<-ctx.Done()
	logger.Info("aplosed shutting down")
	return nil
}
