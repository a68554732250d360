// Package commands provides the CLI commands for ghostedit.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ghostedit/ghostedit/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "ghostedit",
	Short: "ghostedit - edit browser text fields in your own editor",
	Long: `ghostedit bridges the GhostText browser extension and a local text
editor. It serves the extension's discovery handshake, mirrors each text
field into a temporary file, launches your editor on it, and syncs saves
back to the browser as you type.

Run 'ghostedit serve' to start the daemon.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Local overrides for development; missing file is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty-logs", false, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("ghostedit %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(editorsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initLogging(level string, pretty bool) {
	cfg := logging.DefaultConfig()
	if level != "" {
		cfg.Level = logging.ParseLevel(level)
	}
	cfg.Pretty = pretty
	logging.Init(cfg)
}
