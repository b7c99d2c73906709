package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aplose/internal/store"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Review annotation result validations",
	}
	resultsCmd.AddCommand(newResultsValidateCommand(ctx))
	resultsCmd.AddCommand(newResultsValidationsCommand(ctx))
	return resultsCmd
}

func newResultsValidateCommand(ctx *commandContext) *cobra.Command {
	var (
		annotator string
		verdict   string
	)
	cmd := &cobra.Command{
		Use:   "validate <result-id>",
		Short: "Record an annotator's verdict on a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resultID, err := parseID(args[0])
			if err != nil {
				return err
			}
			isValid, err := parseVerdict(verdict)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				user, err := st.UserByUsername(commandCtx(cmd), strings.TrimSpace(annotator))
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %q not found", annotator)
				}
				if err := st.AddValidation(commandCtx(cmd), resultID, user.ID, isValid); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Result %d marked %s by %s\n", resultID, verdictLabel(isValid), user.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&annotator, "annotator", "", "Reviewing annotator username")
	cmd.Flags().StringVar(&verdict, "verdict", "", "valid, invalid, or unset")
	return cmd
}

func newResultsValidationsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validations <result-id>",
		Short: "List the verdicts recorded on a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resultID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				validations, err := st.ValidationsForResult(commandCtx(cmd), resultID)
				if err != nil {
					return err
				}
				if len(validations) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No validations")
					return nil
				}
				rows := make([][]string, 0, len(validations))
				for _, v := range validations {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						strconv.FormatInt(v.AnnotatorID, 10),
						verdictLabel(v.IsValid),
					})
				}
				writeTable(cmd.OutOrStdout(), []string{"ID", "Annotator", "Verdict"}, rows)
				return nil
			})
		},
	}
}

func parseVerdict(value string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "valid", "true", "yes":
		v := true
		return &v, nil
	case "invalid", "false", "no":
		v := false
		return &v, nil
	case "unset", "none", "null":
		return nil, nil
	default:
		return nil, fmt.Errorf("--verdict must be valid, invalid, or unset (got %q)", value)
	}
}

func verdictLabel(value *bool) string {
	switch {
	case value == nil:
		return "unset"
	case *value:
		return "valid"
	default:
		return "invalid"
	}
}
