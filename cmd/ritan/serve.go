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
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the ritan gateway.

The server will:
  - Load configuration from ritan.yaml (or --config)
  - Or load configuration from RITAN_* environment variables
  - Open and migrate the database
  - Serve engine calls, key management, stats and billing routes

With a config file and --hot-reload, tier ceilings, engine costs and the
log level follow edits to the file and SIGHUP.

Environment variables (for Docker deployments):
  RITAN_DATABASE_DSN      - Database path (default: ritan.db)
  RITAN_SERVER_PORT       - Server port (default: 8080)
  RITAN_SESSION_SECRET    - Dashboard session signing secret
  RITAN_PAYMENT_SECRET    - Payment signature secret
  RITAN_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  ritan serve
  ritan serve --config /etc/ritan/config.yaml
  ritan serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var holder *config.Holder
	if hasConfigFile && hotReload {
		h, err := config.NewHolder(cfgFile, bootLogger)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		holder = h
	} else {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}
		holder = config.NewStaticHolder(cfg, bootLogger)
	}

	app, err := bootstrap.New(holder, bootstrap.Options{Version: version})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
