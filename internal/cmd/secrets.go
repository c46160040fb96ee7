package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/config"
	"github.com/vaisest/fakefurbot/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage the encrypted credential vault",
	Long: `Stores account credentials encrypted at rest. The bot reads these names:

  reddit_client_id, reddit_client_secret, reddit_username, reddit_password,
  e621_username, e621_api_key

Values in the vault take precedence over FURBOT_<NAME> env vars.`,
}

var secretsSetCmd = &cobra.Command{
	Use:   "set [name] [value]",
	Short: "Store an encrypted secret",
	Args:  cobra.ExactArgs(2),
	RunE:  secretsSet,
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secrets (metadata only, values not shown)",
	RunE:  secretsList,
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE:  secretsDelete,
}

var secretsAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the secret access log",
	RunE:  secretsAudit,
}

var secretsRotateCmd = &cobra.Command{
	Use:   "rotate [name]",
	Short: "Re-encrypt a secret with a fresh nonce",
	Args:  cobra.ExactArgs(1),
	RunE:  secretsRotate,
}

func init() {
	secretsCmd.AddCommand(secretsSetCmd)
	secretsCmd.AddCommand(secretsListCmd)
	secretsCmd.AddCommand(secretsDeleteCmd)
	secretsCmd.AddCommand(secretsAuditCmd)
	secretsCmd.AddCommand(secretsRotateCmd)
	rootCmd.AddCommand(secretsCmd)
}

func openSecretsStore() (*secrets.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	cfg.WarnIfDefaultKey()

	return secrets.Open(cfg.SecretsDBPath(), cfg.SecretsKey)
}

func isKnownSecret(name string) bool {
	for _, n := range secrets.KnownNames {
		if n == name {
			return true
		}
	}
	return false
}

func secretsSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	name, value := args[0], args[1]

	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("initializing secrets: %w", err)
	}
	defer store.Close()

	if err := store.Set(ctx, name, []byte(value)); err != nil {
		return fmt.Errorf("storing secret: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Secret '%s' stored (encrypted at rest)\n", name)
	if !isKnownSecret(name) {
		fmt.Fprintf(out, "⚠ '%s' is not a name furbot reads\n", name)
	}
	return nil
}

func secretsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("initializing secrets: %w", err)
	}
	defer store.Close()

	list, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No secrets stored yet.")
		return nil
	}
	fmt.Fprintln(out, "Secrets (metadata only, values not shown):")
	for i := range list {
		fmt.Fprintf(out, "  - %s (accessed %d times)\n", list[i].Name, list[i].AccessCount)
	}
	return nil
}

func secretsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("initializing secrets: %w", err)
	}
	defer store.Close()

	if err := store.Delete(ctx, args[0]); err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("secret '%s' does not exist", args[0])
		}
		return fmt.Errorf("deleting secret: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Secret '%s' deleted\n", args[0])
	return nil
}

func secretsAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("initializing secrets: %w", err)
	}
	defer store.Close()

	records, err := store.AccessLog(ctx, "", 50)
	if err != nil {
		return fmt.Errorf("fetching access log: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No secret access records yet.")
		return nil
	}
	fmt.Fprintln(out, "Secret access log (last 50):")
	for _, r := range records {
		status := "✓ FOUND"
		if !r.Found {
			status = "✗ MISSING"
		}
		fmt.Fprintf(out, "  %s | %s | %s | %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), status, r.Accessor, r.SecretName)
	}
	return nil
}

func secretsRotate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("initializing secrets: %w", err)
	}
	defer store.Close()

	if err := store.Rotate(ctx, args[0]); err != nil {
		return fmt.Errorf("rotating secret: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Secret '%s' rotated (new nonce generated)\n", args[0])
	return nil
}
