package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftdb/driftdb/internal/obs"
	"github.com/driftdb/driftdb/internal/restore"
	"github.com/driftdb/driftdb/pkg/engine"
)

var statCmd = &cobra.Command{
	Use:   "stat <data-dir>",
	Short: "Print a catalog/model summary for a data directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
	log := obs.New(obs.Config{Level: obs.LevelInfo, Quiet: quiet})
	report, err := restore.Check(args[0], engine.NewCatalogAdapter, log)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printInfo("spaces: %d\n", len(report.Spaces))
	for _, m := range report.Models {
		printInfo("  %s/%s: %d rows, schema_version=%d\n", m.SpaceName, m.ModelName, m.RowCount, m.SchemaVersion)
	}
	return nil
}
