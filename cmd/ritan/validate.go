package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/artpar/ritan/adapters/sqlite"
	"github.com/artpar/ritan/config"
	"github.com/artpar/ritan/domain/engine"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the ritan configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - HTTP engines are reachable (optional)
  - Database is writable (optional)

Examples:
  ritan validate
  ritan validate --check-engines --config /etc/ritan/config.yaml`,
	RunE: runValidate,
}

var (
	validateCheckEngines  bool
	validateCheckDatabase bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckEngines, "check-engines", false, "check if http engines are reachable")
	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	fmt.Printf("  %s Database: %s\n", checkMark, cfg.Database.DSN)
	fmt.Printf("  %s Admission store: %s (free %d, pro %d)\n", checkMark, cfg.Admission.Store, cfg.Admission.Free, cfg.Admission.Pro)
	if cfg.Auth.SessionSecret == "" {
		fmt.Printf("  %s Session secret missing, dashboard routes are disabled\n", crossMark)
	}
	if cfg.Billing.PaymentSecret == "" {
		fmt.Printf("  %s Payment secret missing, upgrades are disabled\n", crossMark)
	}

	names := make([]string, 0, len(cfg.Engines))
	for name := range cfg.Engines {
		names = append(names, name)
	}
	sort.Strings(names)
	specs := cfg.EngineSpecs()
	for _, name := range names {
		ec := cfg.Engines[name]
		spec := specs[engine.Kind(name)]
		fmt.Printf("  %s Engine %s: %s, cost %d, admission %v\n", checkMark, name, ec.Mode, spec.Cost, spec.RequiresAdmission)
		if validateCheckEngines && ec.Mode == "http" {
			if err := checkEngineReachable(ec.URL); err != nil {
				fmt.Printf("  %s Engine %s reachable\n", crossMark, name)
				fmt.Printf("      Error: %v\n", err)
			} else {
				fmt.Printf("  %s Engine %s reachable\n", checkMark, name)
			}
		}
	}

	if validateCheckDatabase {
		if err := checkDatabaseWritable(cfg.Database.DSN); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkEngineReachable(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate()
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
