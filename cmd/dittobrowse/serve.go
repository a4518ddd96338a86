package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/config"
	"github.com/marmos91/dittobrowse/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the browsing server",
		Long: `Start the browsing server with every enabled adapter.

The server runs until interrupted (SIGINT/SIGTERM); adapters are then stopped
in reverse order and open sessions are closed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := env.cfg
	logger.Info("DittoBrowse %s starting (root: %s)", version, cfg.Root.Type)

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	svc := env.newService(metricsResult.BrowseMetrics)

	srv := server.New(svc)
	srv.SetStopTimeout(cfg.Server.ShutdownTimeout)

	adapters, err := config.CreateAdapters(cfg)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
