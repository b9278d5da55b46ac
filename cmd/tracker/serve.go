package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/service"
)

// shutdownTimeout bounds how long in-flight requests and runs get to finish.
const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and the scheduler when ENABLE_SCHEDULER is set)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("scheduler", false, "Start the scheduler (overrides ENABLE_SCHEDULER)")
	serveCmd.Flags().Bool("run-on-startup", false, "Trigger one full run at startup (overrides RUN_ON_STARTUP)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	if v, _ := cmd.Flags().GetBool("scheduler"); v {
		cfg.EnableScheduler = true
	}
	if v, _ := cmd.Flags().GetBool("run-on-startup"); v {
		cfg.RunOnStartup = true
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := migrateUp(ctx, a.pool); err != nil {
		return err
	}

	var sched *service.Scheduler
	if cfg.EnableScheduler {
		tf, err := config.LoadTrackerFileLoose(cfg.TrackerConfig)
		if err != nil {
			return err
		}
		sched, err = service.NewScheduler(a.runner, tf.Schedule, logger)
		if err != nil {
			return err
		}
		sched.Start()
		a.runner.SetMessage(sched.Describe())
		logger.InfoContext(ctx, "scheduler started", "schedule", sched.Describe(), "next", sched.Next())
	}

	if cfg.RunOnStartup {
		if err := a.runner.Trigger(ctx, service.ModuleAll); err != nil {
			logger.WarnContext(ctx, "startup run not started", "error", err)
		}
	}

	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if sched != nil {
			sched.Stop()
		}
		return errors.Join(srv.Shutdown(shutCtx), a.runner.Shutdown(shutCtx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
