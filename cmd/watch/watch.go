// Package watch runs the long-lived watcher daemon
package watch

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"obs/reversal-watcher/cmd/root"
)

// Cmd represents the watch command
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the reversal watcher daemon",
	Long: `Run the scheduler and admin HTTP server until interrupted. The pipeline
executes immediately on startup and then on every poll interval.`,
	RunE: watchFunc,
}

func watchFunc(cmd *cobra.Command, args []string) error {
	c := root.AppContainer
	log := c.GetLogger()

	if err := c.GetConfig().ValidateService(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.GetServer().Start()
	}()
	go c.GetScheduler().Start(ctx)

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.GetServer().Shutdown(shutdownCtx)
}
