package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportOutputPath string

var exportCmd = &cobra.Command{
	Use:   "export <owner-id>",
	Short: "Export all data of an owner to a JSON snapshot",
	Long: `Export every synced record of the given owner to a snapshot file.

The snapshot can be restored on another instance with "syncd import".

Examples:
  syncd export learner-42 -o learner-42.json
  syncd export learner-42 > backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (stdout when omitted)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ownerID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	ctx := context.Background()

	application, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	snapshot, err := application.engine.Export(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to export owner %s: %w", ownerID, err)
	}

	out := cmd.OutOrStdout()
	if exportOutputPath != "" {
		f, err := os.Create(exportOutputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	total := 0
	for _, records := range snapshot.Data {
		total += len(records)
	}
	logger.Info("Export finished", "owner_id", ownerID, "records", total)

	return nil
}
