package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/taskflow/internal/definition"
)

var importCmd = &cobra.Command{
	Use:   "import <file|dir>...",
	Short: "Validate and store pipeline definitions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := collectFiles(args)
		if err != nil {
			return err
		}

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.importFiles(cmd.Context(), files); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d pipeline(s)\n", len(files))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file|dir>...",
	Short: "Check pipeline definitions without storing them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := collectFiles(args)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d steps)\n", f.Path, f.Pipeline.Name, len(f.Pipeline.Steps))
		}
		return nil
	},
}

// collectFiles parses every named file, expanding directories.
func collectFiles(paths []string) ([]definition.File, error) {
	var files []definition.File
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirFiles, err := definition.LoadDir(path)
			if err != nil {
				return nil, err
			}
			files = append(files, dirFiles...)
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		p, err := definition.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		files = append(files, definition.File{Path: path, Source: src, Pipeline: p})
	}
	return files, nil
}

func init() {
	rootCmd.AddCommand(importCmd, validateCmd)
}
