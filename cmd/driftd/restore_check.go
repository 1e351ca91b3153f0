package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftdb/driftdb/internal/obs"
	"github.com/driftdb/driftdb/internal/restore"
	"github.com/driftdb/driftdb/pkg/engine"
)

var restoreCheckCmd = &cobra.Command{
	Use:   "restore-check <data-dir>",
	Short: "Run the restore pipeline and report resulting row counts without serving traffic",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestoreCheck,
}

func runRestoreCheck(cmd *cobra.Command, args []string) error {
	level := obs.LevelInfo
	if verbose {
		level = obs.LevelDebug
	}
	log := obs.New(obs.Config{Level: level, Quiet: quiet})

	report, err := restore.Check(args[0], engine.NewCatalogAdapter, log)
	if err != nil {
		return fmt.Errorf("restore-check: %w", err)
	}

	total := 0
	for _, m := range report.Models {
		total += m.RowCount
	}
	printInfo("restore ok: %d space(s), %d model(s), %d row(s) total\n", len(report.Spaces), len(report.Models), total)
	return nil
}
