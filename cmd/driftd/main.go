// Command driftd is the storage engine's operational CLI: inspecting a
// data directory, running the journal repair tool, and checking restore
// outcomes without serving traffic. It does not speak any wire protocol
// or query language — those live outside this engine's scope.
//
// Grounded on the teacher's cmd/hivectl (cmd/hivectl/root.go, deleted —
// see DESIGN.md): a cobra root command with global verbose/quiet/json
// flags and one file per subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:     "driftd",
	Short:   "Operate on a driftdb storage engine data directory",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.AddCommand(statCmd, repairCmd, restoreCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}
