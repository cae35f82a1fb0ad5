package main

import (
	"fmt"
	"os"

	"github.com/artpar/ritan/bootstrap"
	"github.com/artpar/ritan/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ritan",
	Short: "API key gateway with tiered admission and credit metering",
	Long: `ritan authenticates API keys, admits calls against monthly tier
ceilings, forwards them to engines, and meters credits per call.

Quick start:
  ritan serve                      # Start the gateway
  ritan token --user=user_123      # Issue a dashboard session token

Management:
  ritan keys      # Manage API keys
  ritan tenants   # Inspect and upgrade tenants
  ritan usage     # Show a tenant's usage
  ritan validate  # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "ritan.yaml", "config file path")
}

// openApp builds the application for one-shot management commands.
// Logs go to stderr at warn level so command output stays readable.
func openApp() (*bootstrap.App, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	return bootstrap.New(config.NewStaticHolder(cfg, logger), bootstrap.Options{
		Version: version,
		Logger:  &logger,
	})
}
