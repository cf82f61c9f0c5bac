// Package export dumps the transaction ledger to CSV
package export

import (
	"os"

	"github.com/spf13/cobra"

	"obs/reversal-watcher/cmd/root"
)

var outputPath string

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export the transaction ledger as CSV",
	Long: `Write all ledger rows, newest first, as CSV. Writes to stdout unless
--output names a file.`,
	RunE: exportFunc,
}

func init() {
	Cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")
}

func exportFunc(cmd *cobra.Command, args []string) error {
	c := root.AppContainer
	ctx := cmd.Context()

	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}

	exporter := c.GetExporter()
	if outputPath == "" {
		return exporter.Write(ctx, os.Stdout)
	}
	return exporter.WriteFile(ctx, outputPath)
}
