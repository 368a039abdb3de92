package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/syncer"
)

var importStrategy string

var importCmd = &cobra.Command{
	Use:   "import <owner-id> <snapshot-file>",
	Short: "Restore owner data from a JSON snapshot",
	Long: `Restore the data of an owner from a snapshot produced by "syncd export".

With --strategy replace existing records of the owner are dropped and
replaced by the snapshot. With --strategy merge snapshot records go
through the normal sync cycle, so conflicts are resolved by the
configured default strategy.

Examples:
  syncd import learner-42 learner-42.json
  syncd import learner-42 backup.json --strategy merge`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importStrategy, "strategy", "replace", "Import strategy: replace, merge")
}

func runImport(_ *cobra.Command, args []string) error {
	ownerID := args[0]
	snapshotPath := args[1]

	strategy := registry.ImportStrategy(importStrategy)
	if strategy != registry.ImportReplace && strategy != registry.ImportMerge {
		return fmt.Errorf("unknown import strategy: %s", importStrategy)
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snapshot syncer.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}
	// Владелец задается аргументом, а не содержимым файла
	snapshot.OwnerID = ownerID

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

	result, err := application.engine.Import(ctx, ownerID, &snapshot, strategy)
	if err != nil {
		return fmt.Errorf("failed to import owner %s: %w", ownerID, err)
	}

	logger.Info("Import finished",
		"owner_id", ownerID,
		"strategy", string(strategy),
		"synced", result.SyncedCount,
		"conflicts", result.ConflictCount,
		"errors", len(result.Errors),
		"success", result.Success,
	)

	if !result.Success {
		return fmt.Errorf("import finished with %d errors", len(result.Errors))
	}

	return nil
}
