// Package cmd implements the campusmind CLI.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/campusmind/campusmind/internal/log"
)

var (
	flagVerbose  bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "campusmind",
	Short: "Campus knowledge assistant over course materials",
	Long: `campusmind ingests course documents (PDF, slides, plain text) into a
vector index and answers student questions grounded in those materials.

Run 'campusmind serve' to start the HTTP API, 'campusmind ingest' to load a
document from the command line, or 'campusmind ask' to query a course.`,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(log.New(log.Config{Level: level, JSON: flagJSONLogs}))
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON")
}
