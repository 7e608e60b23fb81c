package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inspectconnect/internal/clock"
	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/smallbiznis/inspectconnect/internal/migration"
	"github.com/smallbiznis/inspectconnect/internal/observability"
	"github.com/smallbiznis/inspectconnect/internal/scheduler"
	"github.com/smallbiznis/inspectconnect/internal/server"
	"github.com/smallbiznis/inspectconnect/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var rootCmd = &cobra.Command{
	Use:           "inspectconnect",
	Short:         "Subscription billing service backed by Stripe",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and webhook receiver",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			infrastructure(),
			fx.Invoke(func(cfg config.Config) error { return cfg.Validate() }),
			migration.Module,
			server.Module,
			scheduler.Module,
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, fx.Options(
			infrastructure(),
			migration.Module,
		), nil)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, adminCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

// runOnce starts the graph, calls run while it is up, and shuts it down again.
func runOnce(cmd *cobra.Command, opts fx.Option, run func() error, populate ...interface{}) error {
	app := fx.New(opts, fx.Populate(populate...), fx.NopLogger)
	if err := app.Start(cmd.Context()); err != nil {
		return err
	}

	var runErr error
	if run != nil {
		runErr = run()
	}
	return errors.Join(runErr, app.Stop(cmd.Context()))
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
