package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"txfanout/internal/config"
	"txfanout/internal/logger"
	"txfanout/pkg/logging"
)

var (
	configFile string
	count      int
)

func main() {
	run := runCmd()

	rootCmd := &cobra.Command{
		Use:   "generator-service",
		Short: "Synthetic transaction generator",
		Long:  "Generator produces synthetic transaction records into the raw stream topic, optionally bootstrapping the analytics application first",
		RunE:  run.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")
	rootCmd.PersistentFlags().IntVar(&count, "count", 0, "Number of records to emit before exiting (0 = unbounded)")

	rootCmd.AddCommand(run)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
					return fmt.Errorf("config file is required")
				}
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			if cmd.Flags().Changed("count") {
				cfg.Generator.Count = count
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ctx = logging.WithServiceName(ctx, "generator-service")

			log.InfowCtx(ctx, "Starting Generator Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			runErr := app.Run(ctx)

			if err := app.Shutdown(context.Background()); err != nil {
				log.ErrorwCtx(ctx, "Shutdown error", "error", err)
			}

			if runErr != nil && runErr != context.Canceled {
				log.ErrorwCtx(ctx, "Generator stopped with error", "error", runErr)
				return runErr
			}

			log.InfowCtx(ctx, "Generator shutdown complete")
			return nil
		},
	}
}
