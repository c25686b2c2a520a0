package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aisvc",
	Short: "AI service for media analysis and similarity search",
	Long: `aisvc - HTTP AI service for the media pipeline.

The service provides:
  - image analysis via a hosted vision model
  - text similarity search over a persistent vector index
  - embedding storage and management per media ID

Configuration comes from environment variables, optionally layered over
a YAML file (--config). See 'aisvc serve --help' for the knobs.

Examples:
  # Run with defaults (127.0.0.1:8001, ./data)
  OPENAI_API_KEY=sk-... aisvc serve

  # Run with a config file and custom bind address
  aisvc serve --config aisvc.yaml --host 0.0.0.0 --port 8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
