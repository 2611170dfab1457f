package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seantiz/taskflow/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline> <input>",
	Short: "Run a pipeline once and print its final context",
	Long: `Runs the named pipeline with the given input string and prints the final
context as JSON. With --file the definition is read from disk and stored
before running.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connectBackend(); err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("file"); path != "" {
			files, err := collectFiles([]string{path})
			if err != nil {
				return err
			}
			if err := a.importFiles(cmd.Context(), files); err != nil {
				return err
			}
		}

		input := model.String(args[1])
		if asJSON, _ := cmd.Flags().GetBool("json-input"); asJSON {
			if input, err = model.ParseJSON([]byte(args[1])); err != nil {
				return fmt.Errorf("parse input: %w", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		x, err := a.engine.Run(ctx, args[0], input)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(x.Result)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("file", "f", "", "pipeline definition to store before running")
	runCmd.Flags().Bool("json-input", false, "parse the input argument as JSON")
}
