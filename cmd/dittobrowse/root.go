package main

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/browser"
	"github.com/marmos91/dittobrowse/pkg/config"
	"github.com/marmos91/dittobrowse/pkg/metrics"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "dittobrowse",
		Short: "Browse directories, archives, record stores and buckets",
		Long: `DittoBrowse exposes a tree of browsable elements (a local directory,
a BadgerDB record store or an S3 bucket, with zip/jar archives opened
transparently) through a paged listing API.

Configuration is read from $XDG_CONFIG_HOME/dittobrowse/config.yaml unless
--config is given. Environment variables with the DITTOBROWSE_ prefix
override file values.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newLsCmd(&configPath),
		newCatCmd(&configPath),
		newInitCmd(),
		newImportCmd(&configPath),
	)

	return root
}

// environment is what every command working on the configured root needs.
type environment struct {
	cfg       *config.Config
	registry  *browsable.Registry
	root      *config.Root
	logOutput io.Closer
}

// setup loads configuration, configures logging and opens the browsing root.
func setup(ctx context.Context, configPath string) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	logOutput, err := logger.OpenOutput(cfg.Logging.Output)
	if err != nil {
		return nil, err
	}

	reg := config.CreateRegistry()
	root, err := config.CreateRoot(ctx, &cfg.Root, reg)
	if err != nil {
		_ = logOutput.Close()
		return nil, fmt.Errorf("failed to create browsing root: %w", err)
	}

	return &environment{cfg: cfg, registry: reg, root: root, logOutput: logOutput}, nil
}

func (e *environment) Close() {
	if err := e.root.Close(); err != nil {
		logger.Error("Failed to close browsing root: %v", err)
	}
	_ = e.logOutput.Close()
}

// newService builds the browsing service over the environment's root.
// A nil m records nothing.
func (e *environment) newService(m metrics.BrowseMetrics) *browser.Service {
	renderer := config.CreateRenderer(&e.cfg.Browse, e.registry)
	return browser.New(e.registry, e.root.Element, config.BrowserConfig(&e.cfg.Browse), m,
		browser.WithRenderer(renderer.Func()))
}
