package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"aplose/internal/store"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and migrate the database",
	}
	dbCmd.AddCommand(newDBMigrateCommand(ctx))
	dbCmd.AddCommand(newDBStatusCommand(ctx))
	dbCmd.AddCommand(newDBHealthCommand(ctx))
	return dbCmd
}

func newDBMigrateCommand(ctx *commandContext) *cobra.Command {
	var upTo string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRawStore(func(st *store.Store) error {
				before, err := st.MigrationStatus(commandCtx(cmd))
				if err != nil {
					return err
				}
				if err := st.ApplyMigrationsUpTo(commandCtx(cmd), strings.TrimSpace(upTo)); err != nil {
					return err
				}
				after, err := st.MigrationStatus(commandCtx(cmd))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				applied := 0
				for i, state := range after {
					if state.Applied && !before[i].Applied {
						fmt.Fprintf(out, "Applied %s\n", state.Version)
						applied++
					}
				}
				if applied == 0 {
					fmt.Fprintln(out, "Database is up to date")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&upTo, "to", "", "Stop after this migration version")
	return cmd
}

func newDBStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRawStore(func(st *store.Store) error {
				states, err := st.MigrationStatus(commandCtx(cmd))
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(states))
				for _, state := range states {
					rows = append(rows, []string{state.Version, yesNo(state.Applied)})
				}
				writeTable(cmd.OutOrStdout(), []string{"Version", "Applied"}, rows)
				return nil
			})
		},
	}
}

type healthOutput struct {
	Path             string   `json:"path"`
	Exists           bool     `json:"exists"`
	Readable         bool     `json:"readable"`
	SchemaVersion    string   `json:"schema_version"`
	PendingMigration []string `json:"pending_migrations"`
	MissingTables    []string `json:"missing_tables"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalTasks       int      `json:"total_tasks"`
	Error            string   `json:"error,omitempty"`
	Healthy          bool     `json:"healthy"`
}

func newDBHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRawStore(func(st *store.Store) error {
				health, err := st.CheckHealth(commandCtx(cmd))
				if err != nil && health.Error == "" {
					health.Error = err.Error()
				}
				if asJSON {
					return writeJSON(cmd, healthOutput{
						Path:             health.DBPath,
						Exists:           health.DatabaseExists,
						Readable:         health.DatabaseReadable,
						SchemaVersion:    health.SchemaVersion,
						PendingMigration: health.PendingMigration,
						MissingTables:    health.MissingTables,
						IntegrityCheck:   health.IntegrityCheck,
						TotalTasks:       health.TotalTasks,
						Error:            health.Error,
						Healthy:          health.Healthy(),
					})
				}

				rep := newReport(cmd.OutOrStdout())
				rep.section("Database")
				rep.add(levelInfo, "Path", health.DBPath)
				rep.add(levelInfo, "Schema", valueOrNone(health.SchemaVersion))
				rep.add(levelInfo, "Tasks", fmt.Sprintf("%d", health.TotalTasks))
				if len(health.PendingMigration) > 0 {
					rep.add(levelWarn, "Pending", strings.Join(health.PendingMigration, ", "))
				}
				if len(health.MissingTables) > 0 {
					rep.add(levelFail, "Missing tables", strings.Join(health.MissingTables, ", "))
				}
				if health.Error != "" {
					rep.add(levelFail, "Error", health.Error)
				}
				if health.Healthy() {
					rep.add(levelOK, "Health", "healthy")
				} else {
					rep.add(levelFail, "Health", "needs attention")
				}
				rep.writeTo(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func valueOrNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "none"
	}
	return value
}
