// Package cmd defines the CLI commands for the creatorscout executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/api"
	"github.com/creatorscout/creatorscout/internal/app"
	"github.com/creatorscout/creatorscout/internal/config"
	"github.com/creatorscout/creatorscout/internal/discovery"
	"github.com/creatorscout/creatorscout/internal/scout"
	"github.com/creatorscout/creatorscout/internal/worker"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application container the commands use. Keeping
// it an interface lets tests inject a mock factory.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Server() *api.Server
	Worker() *worker.Worker
	Crawler() *discovery.Crawler
	Registry() *discovery.Registry
	IDGenerator() scout.IDGenerator
}

// newApp is the application factory, a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creatorscout",
		Short: "Channel discovery and contact enrichment service",
		Long: `creatorscout discovers creator channels for a keyword, filters them
against audience and category criteria, and enriches the survivors with
contact emails harvested from their public surfaces.`,

		// Runs after flag parsing but before the subcommand's RunE, so
		// every command sees a fully built application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars with prefix SCOUT_ override)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDiscoverCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
