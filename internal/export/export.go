// Package export writes the transaction ledger to CSV for operators and
// reconciliation tooling.
package export

import (
	"context"
	"fmt"
	"io"
	"os"

	"obs/reversal-watcher/internal/ledger"
	"obs/reversal-watcher/internal/logging"

	"github.com/gocarina/gocsv"
)

// Exporter dumps ledger rows as CSV, newest first.
type Exporter struct {
	ledger ledger.Ledger
	log    logging.Logger
}

// NewExporter creates an exporter over the given ledger.
func NewExporter(l ledger.Ledger, log logging.Logger) *Exporter {
	return &Exporter{ledger: l, log: log}
}

// Write streams all ledger rows to w as CSV with a header row.
func (e *Exporter) Write(ctx context.Context, w io.Writer) error {
	entries, err := e.ledger.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ledger entries: %w", err)
	}

	if err := gocsv.Marshal(&entries, w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	e.log.Info("Exported ledger entries",
		logging.Field{Key: "count", Value: len(entries)})
	return nil
}

// WriteFile writes the CSV export to the given path, creating or truncating
// the file.
func (e *Exporter) WriteFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return e.Write(ctx, f)
}
