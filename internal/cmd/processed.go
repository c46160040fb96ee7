package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/config"
	"github.com/vaisest/fakefurbot/internal/processed"
)

var processedCmd = &cobra.Command{
	Use:   "processed",
	Short: "Manage the set of handled comment ids",
}

var processedImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a newline-separated comment id file into the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessedImport,
}

func init() {
	processedCmd.AddCommand(processedImportCmd)
	rootCmd.AddCommand(processedCmd)
}

func runProcessedImport(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "processed.import")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	set, err := processed.Open(ctx, cfg.ProcessedOptions())
	if err != nil {
		return fmt.Errorf("opening processed set: %w", err)
	}
	defer set.Close()

	added, err := processed.Import(ctx, set, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d new ids into the %s backend\n", added, cfg.ProcessedBackend)
	return nil
}
