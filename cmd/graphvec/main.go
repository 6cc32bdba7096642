// Command graphvec serves and manages GraphRAG vector collections.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec"
	"github.com/kailas-cloud/graphvec/internal/config"
	logpkg "github.com/kailas-cloud/graphvec/internal/logger"
	"github.com/kailas-cloud/graphvec/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	env        string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "graphvec",
		Short: "Store and search GraphRAG artifacts in vector collections",
		Long: `graphvec keeps GraphRAG documents, entities, relationships, text units and
community reports in typed vector collections and searches them by meaning.

Examples:
  # Serve the HTTP API with config/local.yaml
  graphvec serve

  # Import a GraphRAG output directory
  graphvec import ./output

  # Search entity titles
  graphvec search entity_title "quantum computing" --limit 5`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.Commit, version.Date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default config/<env>.yaml)")
	root.PersistentFlags().StringVar(&flags.env, "env", config.GetEnv(), "environment: local, dev, docker, prod, test")

	root.AddCommand(
		newServeCmd(flags),
		newInitCmd(flags),
		newResetCmd(flags),
		newStatsCmd(flags),
		newImportCmd(flags),
		newSearchCmd(flags),
	)
	return root
}

// app is what a subcommand needs after flags are parsed.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func loadApp(flags *rootFlags) (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load(flags.env)
	}
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.NewLogger(flags.env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// connect builds a client from the loaded config and connects it.
func (a *app) connect(ctx context.Context) (*graphvec.Client, error) {
	client, err := graphvec.New(graphvec.FromConfig(a.cfg, a.logger)...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// parseTypes validates collection type names. No names means all collections.
func parseTypes(names []string) ([]graphvec.CollectionType, error) {
	types := make([]graphvec.CollectionType, 0, len(names))
	for _, n := range names {
		t, err := graphvec.ParseCollectionType(n)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
