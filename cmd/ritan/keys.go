package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/artpar/ritan/domain/key"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: `Manage ritan API keys.

Each tenant can have multiple API keys. The secret is printed once at
creation and only its digest is stored.

Examples:
  ritan keys list --user=user_123
  ritan keys create --user=user_123 --name=ci
  ritan keys revoke 3f2a... --user=user_123`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys of a tenant",
	RunE:  runKeysList,
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	RunE:  runKeysCreate,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

var (
	keyUserID string
	keyName   string
	keyYes    bool
)

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysRevokeCmd)

	keysCmd.PersistentFlags().StringVar(&keyUserID, "user", "", "tenant ID (required)")
	keysCmd.MarkPersistentFlagRequired("user")
	keysCreateCmd.Flags().StringVar(&keyName, "name", "default", "key name")
	keysRevokeCmd.Flags().BoolVarP(&keyYes, "yes", "y", false, "skip confirmation")
}

func runKeysList(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	keys, err := app.Keys.List(context.Background(), keyUserID)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Printf("No keys found for user %s.\n", keyUserID)
		fmt.Println()
		fmt.Println("Create a key with: ritan keys create --user=<user-id>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tSTATUS\tCREATED\tLAST USED")
	fmt.Fprintln(w, "--\t----\t------\t------\t-------\t---------")

	for _, k := range keys {
		status := "active"
		if !k.Active {
			status = "revoked"
		}
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s...\t%s\t%s\t%s\n",
			k.ID, k.Name, k.VisiblePrefix, status, k.CreatedAt.Format("2006-01-02"), lastUsed)
	}

	w.Flush()
	return nil
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	issued, err := app.Keys.Issue(context.Background(), keyUserID, keyName)
	if errors.Is(err, key.ErrInvalidName) {
		return fmt.Errorf("invalid key name %q: must be 1 to 50 characters", keyName)
	}
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}

	fmt.Printf("%s Created API key for user %s\n", checkMark, keyUserID)
	fmt.Println()
	fmt.Println("API Key (save this, shown once):")
	fmt.Printf("  %s\n", issued.SecretKey)
	fmt.Println()
	fmt.Printf("Key ID: %s\n", issued.ID)

	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	keyID := args[0]

	if !keyYes && !confirm(fmt.Sprintf("Revoke key %s?", keyID)) {
		fmt.Println("Aborted.")
		return nil
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()

	err = app.Keys.Revoke(context.Background(), keyUserID, keyID)
	if errors.Is(err, key.ErrNotFound) {
		return fmt.Errorf("key not found: %s", keyID)
	}
	if err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	fmt.Printf("%s Revoked key: %s\n", checkMark, keyID)
	return nil
}

func confirm(message string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("? %s [y/N]: ", message)
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}
