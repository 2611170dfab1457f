package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "taskflow",
	Short:         "taskflow runs LLM pipelines on an OffloadMQ backend",
	Long:          `taskflow executes declarative YAML pipelines of model queries, gating each step on values extracted from earlier responses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides TASKFLOW_DB_PATH)")
}
