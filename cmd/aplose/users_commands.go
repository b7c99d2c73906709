package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aplose/internal/store"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage annotators and their API tokens",
	}
	usersCmd.AddCommand(newUsersAddCommand(ctx))
	usersCmd.AddCommand(newUsersListCommand(ctx))
	return usersCmd
}

func newUsersAddCommand(ctx *commandContext) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Register a user; a token is generated unless --token is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username must not be empty")
			}
			return ctx.withStore(func(st *store.Store) error {
				user, err := st.CreateUser(commandCtx(cmd), username, strings.TrimSpace(token))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created user %s (id %d)\n", user.Username, user.ID)
				fmt.Fprintf(out, "Token: %s\n", user.Token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "API token to assign")
	return cmd
}

type userOutput struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	DateJoined string `json:"date_joined"`
	Token      string `json:"token,omitempty"`
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON     bool
		showTokens bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				users, err := st.ListUsers(commandCtx(cmd))
				if err != nil {
					return err
				}
				output := make([]userOutput, 0, len(users))
				for _, user := range users {
					row := userOutput{
						ID:         user.ID,
						Username:   user.Username,
						DateJoined: user.DateJoined.UTC().Format(time.RFC3339),
					}
					if showTokens {
						row.Token = user.Token
					}
					output = append(output, row)
				}
				if asJSON {
					return writeJSON(cmd, output)
				}
				if len(output) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users")
					return nil
				}

				headers := []string{"ID", "Username", "Joined"}
				if showTokens {
					headers = append(headers, "Token")
				}
				rows := make([][]string, 0, len(output))
				for _, user := range output {
					row := []string{strconv.FormatInt(user.ID, 10), user.Username, user.DateJoined}
					if showTokens {
						row = append(row, user.Token)
					}
					rows = append(rows, row)
				}
				writeTable(cmd.OutOrStdout(), headers, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showTokens, "show-tokens", false, "Include API tokens")
	return cmd
}
