package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/config"
	"docsearch/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "docsearch",
		Short:         "Document ingestion and similarity search over named vector indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file (default $DOCSEARCH_CONFIG or ./config.yaml)")

	cmd.AddCommand(
		newInitCommand(opts),
		newServeCommand(opts),
		newIngestCommand(opts),
		newSearchCommand(opts),
		newSourcesCommand(opts),
		newDeleteCommand(opts),
	)
	return cmd
}

// load reads and validates the config, then builds the logger and components.
func (o *rootOptions) load() (*app, error) {
	cfg, path, err := config.LoadDefault(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", zap.String("path", path))
	a, err := newApp(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}
