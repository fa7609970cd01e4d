// Package main is the operator CLI: schema migrations, seeding and one-off
// runs of the background jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	app "github.com/R3E-Network/studio_layer/internal/app"
	"github.com/R3E-Network/studio_layer/internal/app/bootstrap"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

var (
	envFile  string
	logLevel string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "studioctl",
	Short:         "Operate a studio deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		log, err = logger.New("studioctl", logger.LoggingConfig{Level: level, Format: cfg.LogFormat, Output: "stderr"})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to an optional .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")
	rootCmd.AddCommand(migrateCmd, seedCmd, sweepCmd, lowStockCmd, consentTemplateCmd)
}

// withApp builds the application against the configured backends without
// starting its background services.
func withApp(ctx context.Context, fn func(*app.Application) error) error {
	rt, err := bootstrap.Build(ctx, cfg, log.Named("bootstrap"))
	if err != nil {
		return err
	}
	defer rt.Close()
	// One-off commands must not open a change feed.
	rt.Options.Realtime = nil
	application, err := app.New(rt.Stores, rt.Options, log.Named("app"))
	if err != nil {
		return err
	}
	return fn(application)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
