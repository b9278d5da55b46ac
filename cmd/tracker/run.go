package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the checks once in the foreground",
	Long: "Runs the selected module (all, cruise, addons or casino) and exits non-zero on failure.\n" +
		"When settings.apprise_test is set in the tracker file, sends a test notification instead.",
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().String("module", service.ModuleAll, "Module to run: all, cruise, addons, casino")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	module, _ := cmd.Flags().GetString("module")
	if !service.ValidModule(module) {
		return fmt.Errorf("unknown module %q: want all, cruise, addons or casino", module)
	}

	tf, err := config.LoadTrackerFile(cfg.TrackerConfig)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if tf.Settings.AppriseTest {
		logger.InfoContext(ctx, "apprise_test is set, sending test notification instead of running")
		return a.runner.TestNotifications(ctx)
	}

	if err := migrateUp(ctx, a.pool); err != nil {
		return err
	}
	if err := a.runner.RunNow(ctx, module); err != nil {
		return err
	}
	logger.InfoContext(ctx, "run finished", "module", module)
	return nil
}
