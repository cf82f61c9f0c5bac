// Package root contains the root command for the application
package root

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"obs/reversal-watcher/internal/config"
	"obs/reversal-watcher/internal/container"
)

var (
	// Log is the shared logger instance for commands
	Log = logrus.New()

	// AppContainer holds the wired application dependencies. Populated by
	// the root command's PersistentPreRunE before any subcommand runs.
	AppContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "reversal-watcher",
		Short: "Watch a Bakong participant feed for payment reversals and forward the funds.",
		Long: `reversal-watcher polls the NBC Bakong network for incoming payment
reversals, acknowledges them to the source, forwards the reversed amount to
the clearing destination and keeps an idempotent ledger of every attempt.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to reversal-watcher!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}

			c, err := container.NewContainer(cfg)
			if err != nil {
				return err
			}
			AppContainer = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if AppContainer != nil {
				if err := AppContainer.Close(); err != nil {
					Log.Warnf("Failed to close container: %v", err)
				}
			}
		},
	}
)

// Init initializes the root command and all flags
func Init() {
	// Flags are intentionally minimal; all tuning goes through the config
	// file and environment variables.
}
