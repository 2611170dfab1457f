package main

import (
	"github.com/spf13/cobra"

	"github.com/seantiz/taskflow/internal/api"
	"github.com/seantiz/taskflow/internal/definition"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.ListenAddr = addr
		}
		if dir, _ := cmd.Flags().GetString("pipelines"); dir != "" {
			cfg.PipelineDir = dir
		}

		a, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connectBackend(); err != nil {
			return err
		}

		if cfg.PipelineDir != "" {
			files, err := definition.LoadDir(cfg.PipelineDir)
			if err != nil {
				return err
			}
			if err := a.importFiles(cmd.Context(), files); err != nil {
				return err
			}
		}

		logger.Info("taskflow: starting",
			"listen_addr", cfg.ListenAddr,
			"db_path", cfg.DBPath,
			"backend_url", cfg.BackendURL,
			"model_policy", cfg.ModelPolicy,
		)

		srv := api.NewServer(cfg.ListenAddr, api.Deps{
			Pipelines:    a.pipelines,
			Executions:   a.db,
			Engine:       a.engine,
			Capabilities: a.client,
			Policies:     a.policies,
			ActivePolicy: cfg.ModelPolicy,
			Tokens:       api.NewTokenSet(cfg.Tokens...),
		}, logger)
		return srv.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "listen address (overrides TASKFLOW_LISTEN_ADDR)")
	serveCmd.Flags().String("pipelines", "", "directory of pipeline files to import at startup")
}
