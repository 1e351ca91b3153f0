package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/driftdb/driftdb/internal/batch"
	"github.com/driftdb/driftdb/internal/cell"
	"github.com/driftdb/driftdb/internal/journal"
	"github.com/driftdb/driftdb/internal/model"
	"github.com/driftdb/driftdb/internal/sdss"
)

var repairCmd = &cobra.Command{
	Use:   "repair <model-journal-file>",
	Short: "Truncate a torn model data journal to its last good event",
	Long: `Opens a model data journal, scrolls to find the last
successfully-replayable event, and truncates everything after it. The
caller must back up the file first: repair is destructive.

repair needs a primary-key field name and type to construct the
scratch model the adapter replays into; it discards the replayed index,
reporting only how many trailing bytes were lost.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

var (
	repairPKField string
	repairPKKind  string
)

func init() {
	repairCmd.Flags().StringVar(&repairPKField, "pk-field", "id", "primary key field name")
	repairCmd.Flags().StringVar(&repairPKKind, "pk-kind", "uint64", "primary key cell kind: uint64, sint64, string, bytes")
}

func runRepair(cmd *cobra.Command, args []string) error {
	kind, err := parsePKKind(repairPKKind)
	if err != nil {
		return err
	}
	scratch, err := model.New(uuid.Nil, "repair-scratch", []model.Field{
		model.NewField(repairPKField, kind, false),
	}, repairPKField)
	if err != nil {
		return fmt.Errorf("repair: %w", err)
	}

	result, err := journal.Repair(args[0], sdss.ClassJournal, sdss.SpecifierModelData, batch.Adapter{Model: scratch}, journal.RepairSimple)
	if err != nil {
		return fmt.Errorf("repair: %w", err)
	}
	if result.NoLoss() {
		printInfo("repair: journal already clean, nothing truncated\n")
		return nil
	}
	printInfo("repair: truncated %d trailing byte(s)\n", result.Lost)
	return nil
}

func parsePKKind(s string) (cell.Kind, error) {
	switch s {
	case "uint64":
		return cell.KindUint64, nil
	case "sint64":
		return cell.KindSint64, nil
	case "string":
		return cell.KindString, nil
	case "bytes":
		return cell.KindBytes, nil
	default:
		return 0, fmt.Errorf("unknown --pk-kind %q", s)
	}
}
