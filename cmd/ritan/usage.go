package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View usage statistics",
	Long: `View usage statistics for a tenant.

Examples:
  ritan usage summary --user=user_123
  ritan usage history --user=user_123 --periods=6
  ritan usage recent --user=user_123 --limit=20`,
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show usage summary for current period",
	RunE:  runUsageSummary,
}

var usageHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show usage history",
	RunE:  runUsageHistory,
}

var usageRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent requests",
	RunE:  runUsageRecent,
}

var (
	usageUserID  string
	usagePeriods int
	usageLimit   int
)

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.AddCommand(usageSummaryCmd)
	usageCmd.AddCommand(usageHistoryCmd)
	usageCmd.AddCommand(usageRecentCmd)

	usageCmd.PersistentFlags().StringVar(&usageUserID, "user", "", "tenant ID (required)")
	usageCmd.MarkPersistentFlagRequired("user")

	usageHistoryCmd.Flags().IntVar(&usagePeriods, "periods", 6, "number of periods to show")
	usageRecentCmd.Flags().IntVar(&usageLimit, "limit", 20, "number of requests to show")
}

func runUsageSummary(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	ctx := context.Background()
	stats, err := app.Ledger.Stats(ctx, usageUserID)
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}
	sum, err := app.Ledger.CurrentSummary(ctx, usageUserID)
	if err != nil {
		return fmt.Errorf("failed to compute summary: %w", err)
	}

	fmt.Printf("Usage for %s (%s tier)\n", usageUserID, stats.Tier)
	fmt.Printf("Period: %s to %s\n", sum.PeriodStart.Format("2006-01-02"), sum.PeriodEnd.Format("2006-01-02"))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Admitted calls:\t%d / %d\n", stats.PeriodUsage, stats.PeriodLimit)
	fmt.Fprintf(w, "Remaining:\t%d\n", stats.RemainingCredits)
	fmt.Fprintf(w, "Requests this period:\t%d\n", sum.RequestCount)
	fmt.Fprintf(w, "Credits this period:\t%d\n", sum.Credits)
	fmt.Fprintf(w, "Errors this period:\t%d\n", sum.ErrorCount)
	fmt.Fprintf(w, "Avg latency:\t%dms\n", sum.AvgLatencyMs)
	fmt.Fprintf(w, "Total requests:\t%d\n", stats.TotalRequests)
	fmt.Fprintf(w, "Success rate:\t%.1f%%\n", stats.SuccessRate)
	w.Flush()

	if len(sum.ByEngine) > 0 {
		fmt.Println()
		engines := make([]string, 0, len(sum.ByEngine))
		for name := range sum.ByEngine {
			engines = append(engines, name)
		}
		sort.Strings(engines)

		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENGINE\tCREDITS")
		for _, name := range engines {
			fmt.Fprintf(w, "%s\t%d\n", name, sum.ByEngine[name])
		}
		w.Flush()
	}
	return nil
}

func runUsageHistory(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	ctx := context.Background()
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tREQUESTS\tCREDITS\tERRORS\tAVG LATENCY")
	fmt.Fprintln(w, "------\t--------\t-------\t------\t-----------")

	for i := 0; i < usagePeriods; i++ {
		sum, err := app.Ledger.Summary(ctx, usageUserID, monthStart.AddDate(0, -i, 0))
		if err != nil {
			return fmt.Errorf("failed to compute summary: %w", err)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%dms\n",
			sum.PeriodStart.Format("2006-01"), sum.RequestCount, sum.Credits, sum.ErrorCount, sum.AvgLatencyMs)
	}

	w.Flush()
	return nil
}

func runUsageRecent(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	records, err := app.Usage.Recent(context.Background(), usageUserID, usageLimit)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No requests recorded for %s.\n", usageUserID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tENGINE\tSTATUS\tCOST\tDURATION\tKEY")
	fmt.Fprintln(w, "----\t------\t------\t----\t--------\t---")

	for _, r := range records {
		keyID := r.KeyID
		if keyID == "" {
			keyID = "(session)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dms\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Engine, r.StatusCode, r.Cost, r.DurationMs, keyID)
	}

	w.Flush()
	return nil
}
