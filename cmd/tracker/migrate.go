package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or list database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		pool, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if action == "up" {
			return migrateUp(ctx, pool)
		}

		p, closeDB, err := newProvider(pool)
		if err != nil {
			return err
		}
		defer closeDB()

		switch action {
		case "down":
			r, err := p.Down(ctx)
			if err != nil {
				return fmt.Errorf("roll back migration: %w", err)
			}
			logger.InfoContext(ctx, "migration rolled back", "version", r.Source.Version)
		case "status":
			statuses, err := p.Status(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				applied := "pending"
				if !s.AppliedAt.IsZero() {
					applied = s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "%-6d %-10s %s\n", s.Source.Version, s.State, applied)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
