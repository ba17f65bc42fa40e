// Command iomgrd is the storage core's daemon and operator CLI: it binds
// config, instance, catalog, request handler, and connection acceptor
// into one process (spec §5, §6.5), plus the operator-facing
// init/status/show/admin subcommands an operator drives this with
// directly, mirroring the teacher's single-binary cobra CLI shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "iomgrd",
	Short: "Siodb-style relational storage core",
	Long: `iomgrd is the IO manager for a single relational storage instance:
one process owning a data directory (spec §5), speaking the row-level wire
protocol of spec §6.4 to clients, and exposing operator commands for
bootstrapping databases, checking instance health, and inspecting the
catalog without a client connection.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.toml (default: discovered per internal/config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of formatted text")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setNextTridCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
