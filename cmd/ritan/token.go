package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a dashboard session token",
	Long: `Issue a signed session token for a tenant.

Session tokens authenticate the key management, stats and billing
routes. They require auth.session_secret in the configuration.

Examples:
  ritan token --user=user_123
  curl -H "Authorization: Bearer $(ritan token --user=user_123 -q)" localhost:8080/stats`,
	RunE: runToken,
}

var (
	tokenUserID string
	tokenQuiet  bool
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "tenant ID (required)")
	tokenCmd.Flags().BoolVarP(&tokenQuiet, "quiet", "q", false, "print only the token")
	tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	if app.Sessions == nil {
		return fmt.Errorf("no session secret configured: set auth.session_secret or RITAN_SESSION_SECRET")
	}

	token, expiresAt, err := app.Sessions.Issue(tokenUserID)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	if tokenQuiet {
		fmt.Println(token)
		return nil
	}
	fmt.Printf("%s Session token for %s (expires %s)\n", checkMark, tokenUserID, expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Printf("  %s\n", token)
	return nil
}
