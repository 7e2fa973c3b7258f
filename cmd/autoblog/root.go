package main

import (
	"fmt"

	"autoblog/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is shared by every subcommand once the root pre-run has loaded it.
type app struct {
	configPath string
	debug      bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "autoblog",
		Short:         "AI blog automation with pluggable integrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (defaults to ./autoblog.yaml or ./configs/autoblog.yaml)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable development logging")

	cmd.AddCommand(
		newServeCmd(a),
		newIntegrationsCmd(a),
		newCronCmd(a),
		newGenerateCmd(a),
		newTokenCmd(a),
	)
	return cmd
}

func (a *app) load() error {
	envErr := godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.debug || cfg.Log.Debug {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		a.logger.Debug("No .env file found, using environment variables")
	}
	return nil
}
