// Package ledger persists the authoritative record of every reversal attempt
// and every stored original payment, keyed by transaction hash.
package ledger

import (
	"context"
	"errors"

	"obs/reversal-watcher/internal/models"
)

// ErrDuplicateHash is returned by Create when a row with the same
// transaction hash already exists. StoreOriginal never returns it; storing
// an already-stored original is an expected no-op.
var ErrDuplicateHash = errors.New("ledger: duplicate transaction hash")

// Ledger is the transaction ledger contract consumed by the pipeline.
// Operations are individually atomic; the pipeline relies on per-step
// idempotence rather than cross-step transactions.
type Ledger interface {
	// Exists reports whether a row with this transaction hash exists.
	Exists(ctx context.Context, hash string) (bool, error)

	// GetByHash returns the row for the hash, or nil when absent.
	GetByHash(ctx context.Context, hash string) (*models.LedgerEntry, error)

	// Create inserts a new row, failing with ErrDuplicateHash when the hash
	// is already present. The persisted row (with id and created_at) is
	// returned.
	Create(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)

	// StoreOriginal inserts a non-reversal row with status STORED for
	// future content pairing. Inserting an existing hash is a no-op.
	StoreOriginal(ctx context.Context, entry *models.LedgerEntry) error

	// UpdateStatus sets the status of the row with the given hash.
	UpdateStatus(ctx context.Context, hash string, status models.Status) error

	// MarkSuccess sets the terminal SUCCESS status and records the
	// forwarding reference on the row with the given hash.
	MarkSuccess(ctx context.Context, hash, extRef string) error

	// FindMatchingOriginal returns the newest STORED non-reversal row
	// matching the criteria, or nil when none matches. Account fields
	// narrow the match only when set.
	FindMatchingOriginal(ctx context.Context, criteria models.MatchingCriteria) (*models.LedgerEntry, error)

	// List returns all rows, newest first. Used by the operator export.
	List(ctx context.Context) ([]models.LedgerEntry, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
