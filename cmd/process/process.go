// Package process runs a single pipeline pass
package process

import (
	"fmt"

	"github.com/spf13/cobra"

	"obs/reversal-watcher/cmd/root"
)

// Cmd represents the process command
var Cmd = &cobra.Command{
	Use:   "process",
	Short: "Run one reversal check and exit",
	Long: `Fetch, classify and process all pending documents once, print the run
summary and exit. Useful for cron-driven deployments and manual reruns.`,
	RunE: processFunc,
}

func processFunc(cmd *cobra.Command, args []string) error {
	c := root.AppContainer
	ctx := cmd.Context()

	if err := c.GetConfig().ValidateService(); err != nil {
		return err
	}
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}

	summary := c.GetPipeline().Run(ctx)
	fmt.Printf("run %s: %s\n", summary.RunID, summary)

	if summary.Failed > 0 {
		return fmt.Errorf("%d documents failed, see logs", summary.Failed)
	}
	return nil
}
