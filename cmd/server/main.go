package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-hr-approvals/internal/config"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	loader     *config.Loader
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{loader: config.NewLoader()}

	root := &cobra.Command{
		Use:           "hr-approvals",
		Short:         "HR approval matrix and escalation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default ./config.yaml)")
	root.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().String("db-driver", "", "Storage backend: memory or postgres")
	_ = opts.loader.Viper().BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = opts.loader.Viper().BindPFlag("database.driver", root.PersistentFlags().Lookup("db-driver"))

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSweepCommand(opts),
		newSummarizeCommand(),
	)
	return root
}

// load reads configuration and builds the service logger.
func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	if o.configPath != "" {
		o.loader.SetConfigFile(o.configPath)
	}
	cfg, err := o.loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})
	if used := o.loader.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("Configuration file loaded")
	}
	return cfg, log, nil
}
