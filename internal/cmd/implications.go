package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/vaisest/fakefurbot/internal/catalog"
	"github.com/vaisest/fakefurbot/internal/config"
	"github.com/vaisest/fakefurbot/internal/profile"
	"github.com/vaisest/fakefurbot/internal/secrets"
	"github.com/vaisest/fakefurbot/internal/tags"
)

var implicationsOutput string

var implicationsCmd = &cobra.Command{
	Use:   "implications",
	Short: "Manage the tag implication list",
}

var implicationsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download every active tag implication from the catalog",
	Long: `Pages through the catalog's active tag implications, one page per
second, and writes them as antecedent%consequent lines. The file is
replaced only after the download completes.`,
	RunE: runImplicationsFetch,
}

func init() {
	implicationsFetchCmd.Flags().StringVarP(&implicationsOutput, "output", "o", "", "output file (default: implications_path)")
	implicationsCmd.AddCommand(implicationsFetchCmd)
	rootCmd.AddCommand(implicationsCmd)
}

func runImplicationsFetch(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "implications.fetch")
	defer span.End()

	// The implication list is what the bot needs before its first run, so
	// this command only needs the profile's user agent, not the tag files.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	prof, err := profile.Load(ctx, cfg.Profile)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	var creds catalog.Credentials
	if err := cfg.EnsureDataDir(); err == nil {
		if vault, err := secrets.Open(cfg.SecretsDBPath(), cfg.SecretsKey); err == nil {
			resolved, rerr := config.ResolveCredentials(ctx, vault, "implications")
			vault.Close()
			if rerr == nil {
				creds = resolved.Catalog
			}
		}
	}

	out := implicationsOutput
	if out == "" {
		out = cfg.ImplicationsPath
	}

	client := catalog.NewClient(cfg.CatalogBaseURL, prof.Bot.UserAgent, creds,
		catalog.WithRateLimit(rate.Limit(1), 1))
	pairs, err := client.AllImplications(ctx)
	if err != nil {
		return err
	}

	if err := writeImplicationsFile(out, pairs); err != nil {
		return err
	}
	log.Info().Int("implications", len(pairs)).Str("path", out).Msg("implications_written")
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d implications to %s\n", len(pairs), out)
	return nil
}

// writeImplicationsFile writes to a sibling temp file and renames it over
// path, so a failed write never truncates the list the bot reads.
func writeImplicationsFile(path string, pairs []tags.Pair) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".implications-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tags.WriteImplications(tmp, pairs); err != nil {
		tmp.Close()
		return fmt.Errorf("writing implications: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
