package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/renewly/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one reminder pass and exit",
	Long:  `Execute a single reminder batch pass immediately, print its statistics, and exit. Useful for cron-driven deployments and dry runs against a staging store.`,
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Close()

	stats, err := application.Pipeline().Run(context.Background())
	if err != nil {
		return fmt.Errorf("reminder run failed: %w", err)
	}

	fmt.Printf("Run %s completed\n", stats.RunID)
	fmt.Printf("  Total clients: %d\n", stats.Total)
	fmt.Printf("  Eligible:      %d\n", stats.Eligible)
	fmt.Printf("  Sent:          %d\n", stats.Sent)
	fmt.Printf("  Failed:        %d\n", stats.Failed)
	for _, e := range stats.Errors {
		fmt.Printf("  error: %s\n", e)
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d reminders failed", stats.Failed, stats.Eligible)
	}
	return nil
}
