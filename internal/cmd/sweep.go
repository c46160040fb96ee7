package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/sweep"
)

var sweepDryRun bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete the bot's own comments scored below zero, once",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "list what would be deleted without deleting")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "sweep")
	defer span.End()

	e, err := loadEnv(ctx, "sweep")
	if err != nil {
		return err
	}
	client, err := e.platformClient(ctx)
	if err != nil {
		return fmt.Errorf("creating platform client: %w", err)
	}

	s := &sweep.Sweeper{
		Account:  client,
		Username: client.Username(),
		PageSize: e.profile.Sweep.PageSize,
		DryRun:   sweepDryRun,
	}
	res, err := s.Run(ctx)

	out := cmd.OutOrStdout()
	verb := "Removed"
	if sweepDryRun {
		verb = "Would remove"
	}
	fmt.Fprintf(out, "Scanned %d comments. %s %d.\n", res.Scanned, verb, len(res.Removed))
	for _, id := range res.Removed {
		fmt.Fprintf(out, "  - %s\n", id)
	}
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}
