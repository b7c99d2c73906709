package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aplose/internal/api"
	"aplose/internal/store"
)

func newCampaignsCommand(ctx *commandContext) *cobra.Command {
	campaignsCmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Inspect annotation campaigns",
	}

	var asJSON bool
	var usageFilter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			var usage *store.CampaignUsage
			if usageFilter != "" {
				parsed, err := store.ParseCampaignUsage(usageFilter)
				if err != nil {
					return err
				}
				usage = &parsed
			}
			return ctx.withStore(func(st *store.Store) error {
				all, err := st.ListCampaigns(commandCtx(cmd))
				if err != nil {
					return err
				}
				campaigns := all[:0]
				for _, c := range all {
					if usage == nil || c.Usage == *usage {
						campaigns = append(campaigns, c)
					}
				}
				if asJSON {
					type campaignOutput struct {
						ID        int64  `json:"id"`
						Name      string `json:"name"`
						Usage     string `json:"usage"`
						CreatedAt string `json:"created_at"`
					}
					output := make([]campaignOutput, 0, len(campaigns))
					for _, c := range campaigns {
						output = append(output, campaignOutput{
							ID:        c.ID,
							Name:      c.Name,
							Usage:     c.Usage.String(),
							CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
						})
					}
					return writeJSON(cmd, output)
				}
				if len(campaigns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No campaigns")
					return nil
				}
				rows := make([][]string, 0, len(campaigns))
				for _, c := range campaigns {
					rows = append(rows, []string{
						strconv.FormatInt(c.ID, 10),
						c.Name,
						c.Usage.String(),
						c.CreatedAt.UTC().Format("2006-01-02"),
					})
				}
				writeTable(cmd.OutOrStdout(), []string{"ID", "Name", "Usage", "Created"}, rows)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	listCmd.Flags().StringVar(&usageFilter, "usage", "", "Only list campaigns with this usage (create|check)")
	campaignsCmd.AddCommand(listCmd)
	return campaignsCmd
}

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect annotation tasks",
	}

	var (
		campaignID int64
		annotator  string
		asJSON     bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List an annotator's tasks in a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			if campaignID <= 0 {
				return fmt.Errorf("--campaign is required")
			}
			if strings.TrimSpace(annotator) == "" {
				return fmt.Errorf("--annotator is required")
			}
			return ctx.withStore(func(st *store.Store) error {
				user, err := st.UserByUsername(commandCtx(cmd), strings.TrimSpace(annotator))
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %q not found", annotator)
				}
				svc := api.NewTaskService(st, "", ctx.logger())
				tasks, err := svc.CampaignTasks(commandCtx(cmd), campaignID, user.ID)
				if err != nil {
					return fmt.Errorf("campaign %d: %w", campaignID, err)
				}
				if asJSON {
					return writeJSON(cmd, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						strconv.FormatInt(task.ID, 10),
						store.TaskStatus(task.Status).String(),
						task.Filename,
						task.DatasetName,
						derefOr(task.Start, "-"),
					})
				}
				writeTable(cmd.OutOrStdout(), []string{"ID", "Status", "File", "Dataset", "Start"}, rows)
				return nil
			})
		},
	}
	listCmd.Flags().Int64Var(&campaignID, "campaign", 0, "Campaign id")
	listCmd.Flags().StringVar(&annotator, "annotator", "", "Annotator username")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	tasksCmd.AddCommand(listCmd)
	tasksCmd.AddCommand(newTasksSessionsCommand(ctx))
	tasksCmd.AddCommand(newTasksResetCommand(ctx))
	return tasksCmd
}

func newTasksSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions <task-id>",
		Short: "List the recorded work sessions of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				sessions, err := st.SessionsForTask(commandCtx(cmd), taskID)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, session := range sessions {
					rows = append(rows, []string{
						strconv.FormatInt(session.ID, 10),
						session.Start.UTC().Format(time.RFC3339),
						session.End.Sub(session.Start).String(),
					})
				}
				writeTable(cmd.OutOrStdout(), []string{"ID", "Start", "Duration"}, rows)
				return nil
			})
		},
	}
}

// newTasksResetCommand reopens a task, for example after an annotator
// submitted by mistake. Results are kept.
func newTasksResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <task-id>",
		Short: "Mark a task as created again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				task, err := st.TaskByID(commandCtx(cmd), taskID)
				if err != nil {
					return err
				}
				if task == nil {
					return fmt.Errorf("task %d not found", taskID)
				}
				if err := st.SetTaskStatus(commandCtx(cmd), taskID, store.TaskCreated); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %d reset from %s\n", taskID, task.Status)
				return nil
			})
		},
	}
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
