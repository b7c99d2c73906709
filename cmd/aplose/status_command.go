package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"aplose/internal/preflight"
	"aplose/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installation health and task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}
			rep := newReport(cmd.OutOrStdout())
			rep.section("Configuration")
			rep.add(levelInfo, "Config file", configPath)
			rep.add(levelInfo, "Bind", cfg.Server.Bind)
			rep.add(levelInfo, "Static URL", cfg.Server.StaticURL)
			rep.add(levelInfo, "Metrics", metricsLabel(cfg.Metrics.Enabled, cfg.Metrics.Path))

			err = ctx.withRawStore(func(st *store.Store) error {
				rep.section("Checks")
				passed := rep.checks(preflight.RunAll(commandCtx(cmd), cfg, st))

				rep.section("Tasks")
				if !passed {
					rep.add(levelWarn, "Counts", "unavailable until checks pass")
					return nil
				}
				counts, err := st.Stats(commandCtx(cmd))
				if err != nil {
					return err
				}
				for _, status := range store.AllTaskStatuses() {
					rep.add(levelInfo, titleCase(status.String()), fmt.Sprintf("%d", counts[status]))
				}
				return nil
			})
			if err != nil {
				return err
			}

			rep.writeTo(cmd.OutOrStdout())
			return nil
		},
	}
}

func metricsLabel(enabled bool, path string) string {
	if !enabled {
		return "disabled"
	}
	return "enabled at " + path
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
