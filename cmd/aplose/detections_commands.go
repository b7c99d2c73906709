package main

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aplose/internal/detection"
	"aplose/internal/store"
)

func newDetectionsCommand(ctx *commandContext) *cobra.Command {
	detectionsCmd := &cobra.Command{
		Use:   "detections",
		Short: "Import detector results",
	}

	var (
		campaignID        int64
		detectorName      string
		configuration     string
		configurationFile string
	)
	importCmd := &cobra.Command{
		Use:   "import <file.csv|->",
		Short: "Import detections into a campaign",
		Long: "Import detections from a CSV file with the header\n" +
			"filename,start_time,end_time,start_frequency,end_frequency,annotation\n" +
			"(any column order). Rows with unknown files or labels are reported and skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if campaignID <= 0 {
				return fmt.Errorf("--campaign is required")
			}
			if strings.TrimSpace(detectorName) == "" {
				return fmt.Errorf("--detector is required")
			}
			if configurationFile != "" {
				data, err := readInput(cmd, configurationFile)
				if err != nil {
					return err
				}
				configuration = string(data)
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(st *store.Store) error {
				importer := detection.NewImporter(st, ctx.logger())
				result, err := importer.Import(commandCtx(cmd), campaignID, detectorName, configuration, bytes.NewReader(data))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d detections", result.Imported)
				if result.Imported > 0 {
					fmt.Fprintf(out, " (configuration %d)", result.ConfigurationID)
				}
				fmt.Fprintln(out)
				if len(result.Skipped) > 0 {
					fmt.Fprintf(out, "Skipped %d rows:\n", len(result.Skipped))
					for _, skip := range result.Skipped {
						fmt.Fprintf(out, "  line %d: %s\n", skip.Line, skip.Reason)
					}
				}
				return nil
			})
		},
	}
	importCmd.Flags().Int64Var(&campaignID, "campaign", 0, "Target campaign id")
	importCmd.Flags().StringVar(&detectorName, "detector", "", "Detector name")
	importCmd.Flags().StringVar(&configuration, "configuration", "", "Detector configuration text")
	importCmd.Flags().StringVar(&configurationFile, "configuration-file", "", "Read the detector configuration from a file")
	detectionsCmd.AddCommand(importCmd)
	detectionsCmd.AddCommand(newDetectorsListCommand(ctx))
	return detectionsCmd
}

func newDetectorsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "detectors",
		Short: "List detectors and their configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				detectors, err := st.ListDetectors(commandCtx(cmd))
				if err != nil {
					return err
				}
				if len(detectors) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No detectors")
					return nil
				}
				var rows [][]string
				for _, detector := range detectors {
					configs, err := st.DetectorConfigurations(commandCtx(cmd), detector.ID)
					if err != nil {
						return err
					}
					if len(configs) == 0 {
						rows = append(rows, []string{detector.Name, "-", ""})
						continue
					}
					for _, cfg := range configs {
						rows = append(rows, []string{detector.Name, strconv.FormatInt(cfg.ID, 10), cfg.Configuration})
					}
				}
				writeTable(cmd.OutOrStdout(), []string{"Detector", "Configuration", "Parameters"}, rows)
				return nil
			})
		},
	}
}
