package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aplose/internal/api"
	"aplose/internal/store"
	"aplose/internal/validation"
)

func newNewsCommand(ctx *commandContext) *cobra.Command {
	newsCmd := &cobra.Command{
		Use:   "news",
		Short: "Publish site announcements",
	}
	newsCmd.AddCommand(newNewsAddCommand(ctx))
	newsCmd.AddCommand(newNewsUpdateCommand(ctx))
	newsCmd.AddCommand(newNewsListCommand(ctx))
	newsCmd.AddCommand(newNewsRemoveCommand(ctx))
	return newsCmd
}

type newsFlags struct {
	title    string
	intro    string
	body     string
	bodyFile string
	date     string
	vignette string
}

func (f *newsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Title (unique, at most 255 characters)")
	cmd.Flags().StringVar(&f.intro, "intro", "", "Short introduction")
	cmd.Flags().StringVar(&f.body, "body", "", "HTML body")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "Read the HTML body from a file (- for stdin)")
	cmd.Flags().StringVar(&f.date, "date", "", "Publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.vignette, "vignette", "", "Image URL")
}

func (f *newsFlags) input(cmd *cobra.Command) (api.NewsInput, error) {
	body := f.body
	if f.bodyFile != "" {
		if f.body != "" {
			return api.NewsInput{}, fmt.Errorf("--body and --body-file are mutually exclusive")
		}
		data, err := readInput(cmd, f.bodyFile)
		if err != nil {
			return api.NewsInput{}, err
		}
		body = string(data)
	}
	return api.NewsInput{
		Title:    f.title,
		Intro:    f.intro,
		Body:     body,
		Date:     f.date,
		Vignette: f.vignette,
	}, nil
}

func newNewsAddCommand(ctx *commandContext) *cobra.Command {
	var flags newsFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an announcement",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := flags.input(cmd)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				item, err := newsService(ctx, st).Create(commandCtx(cmd), input)
				if err != nil {
					return describeValidation(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created news %d: %s\n", item.ID, item.Title)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newNewsUpdateCommand(ctx *commandContext) *cobra.Command {
	var flags newsFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace an announcement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			input, err := flags.input(cmd)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				item, err := newsService(ctx, st).Update(commandCtx(cmd), id, input)
				if err != nil {
					return describeValidation(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated news %d: %s\n", item.ID, item.Title)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newNewsListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		offset int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List announcements, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				list, err := newsService(ctx, st).List(commandCtx(cmd), limit, offset)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list.Results) == 0 {
					fmt.Fprintln(out, "No news")
					return nil
				}
				rows := make([][]string, 0, len(list.Results))
				for _, item := range list.Results {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						derefOr(item.Date, "-"),
						item.Title,
					})
				}
				writeTable(out, []string{"ID", "Date", "Title"}, rows)
				fmt.Fprintf(out, "%d of %d shown\n", len(list.Results), list.Count)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items (defaults to server.news_page_size)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of items to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newNewsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an announcement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := newsService(ctx, st).Delete(commandCtx(cmd), id); err != nil {
					return fmt.Errorf("news %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed news %d\n", id)
				return nil
			})
		},
	}
}

func newsService(ctx *commandContext, st *store.Store) *api.NewsService {
	pageSize := 0
	if cfg, err := ctx.ensureConfig(); err == nil {
		pageSize = cfg.Server.NewsPageSize
	}
	return api.NewNewsService(st, pageSize, ctx.logger())
}

// describeValidation flattens field failures into one line per field.
func describeValidation(err error) error {
	verr, ok := validation.AsRequestError(err)
	if !ok {
		return err
	}
	parts := make([]string, 0, len(verr.Fields()))
	for _, field := range verr.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", field.Field, field.Message))
	}
	return fmt.Errorf("invalid input:\n  %s", strings.Join(parts, "\n  "))
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
