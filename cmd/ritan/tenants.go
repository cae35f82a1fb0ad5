package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/ports"
	"github.com/spf13/cobra"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Inspect and manage tenants",
	Long: `Inspect and manage tenants.

A tenant is created on the free tier the first time it issues a key.
Upgrades normally happen through a verified payment; set-tier is the
operator override.

Examples:
  ritan tenants list
  ritan tenants show user_123
  ritan tenants set-tier user_123 pro`,
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants",
	RunE:  runTenantsList,
}

var tenantsShowCmd = &cobra.Command{
	Use:   "show <tenant-id>",
	Short: "Show a tenant's tier and current admission usage",
	Args:  cobra.ExactArgs(1),
	RunE:  runTenantsShow,
}

var tenantsSetTierCmd = &cobra.Command{
	Use:   "set-tier <tenant-id> <free|pro>",
	Short: "Set a tenant's tier",
	Args:  cobra.ExactArgs(2),
	RunE:  runTenantsSetTier,
}

var (
	tenantsLimit  int
	tenantsOffset int
)

func init() {
	rootCmd.AddCommand(tenantsCmd)

	tenantsCmd.AddCommand(tenantsListCmd)
	tenantsCmd.AddCommand(tenantsShowCmd)
	tenantsCmd.AddCommand(tenantsSetTierCmd)

	tenantsListCmd.Flags().IntVar(&tenantsLimit, "limit", 100, "maximum tenants to list")
	tenantsListCmd.Flags().IntVar(&tenantsOffset, "offset", 0, "tenants to skip")
}

func runTenantsList(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	tenants, err := app.Tenants.List(context.Background(), tenantsLimit, tenantsOffset)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tCREATED\tUPDATED")
	fmt.Fprintln(w, "--\t----\t-------\t-------")
	for _, t := range tenants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Tier, t.CreatedAt.Format("2006-01-02"), t.UpdatedAt.Format("2006-01-02"))
	}
	w.Flush()
	return nil
}

func runTenantsShow(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	ctx := context.Background()
	t, err := app.Tenants.Get(ctx, args[0])
	if errors.Is(err, ports.ErrTenantNotFound) {
		return fmt.Errorf("tenant not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	tier, used, limit, err := app.Admission.Usage(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}

	fmt.Printf("Tenant:   %s\n", t.ID)
	fmt.Printf("Tier:     %s\n", tier)
	fmt.Printf("Admitted: %d / %d this period\n", used, limit)
	fmt.Printf("Created:  %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", t.UpdatedAt.Format(time.RFC3339))
	return nil
}

func runTenantsSetTier(cmd *cobra.Command, args []string) error {
	tier := quota.Tier(args[1])
	if tier != quota.TierFree && tier != quota.TierPro {
		return fmt.Errorf("unknown tier %q: use free or pro", args[1])
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	if err := app.Tenants.SetTier(context.Background(), args[0], tier, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}

	fmt.Printf("%s Tenant %s is now on the %s tier\n", checkMark, args[0], tier)
	return nil
}
