package ledger

import (
	"context"
	"sync"
	"time"

	"obs/reversal-watcher/internal/models"
)

// MemoryLedger is an in-memory Ledger with the same semantics as the
// Postgres implementation. It backs tests and mock mode.
type MemoryLedger struct {
	mu      sync.RWMutex
	nextID  int64
	entries []*models.LedgerEntry
	byHash  map[string]*models.LedgerEntry

	// clock is overridable so tests can control created_at ordering.
	clock func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		nextID: 1,
		byHash: make(map[string]*models.LedgerEntry),
		clock:  time.Now,
	}
}

var _ Ledger = (*MemoryLedger)(nil)

// SetClock overrides the timestamp source. Test helper.
func (l *MemoryLedger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// Exists reports whether a row with this transaction hash exists.
func (l *MemoryLedger) Exists(_ context.Context, hash string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byHash[hash]
	return ok, nil
}

// GetByHash returns a copy of the row for the hash, or nil when absent.
func (l *MemoryLedger) GetByHash(_ context.Context, hash string) (*models.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.byHash[hash]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

// Create inserts a new row, failing with ErrDuplicateHash on an existing hash.
func (l *MemoryLedger) Create(_ context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byHash[entry.TrxHash]; ok {
		return nil, ErrDuplicateHash
	}

	stored := l.insert(entry)
	copied := *stored
	return &copied, nil
}

// StoreOriginal inserts a STORED non-reversal row, ignoring an existing hash.
func (l *MemoryLedger) StoreOriginal(_ context.Context, entry *models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byHash[entry.TrxHash]; ok {
		return nil
	}

	original := *entry
	original.Status = models.StatusStored
	original.IsReversal = false
	original.OriginalTrxID = nil
	l.insert(&original)
	return nil
}

// UpdateStatus sets the status of the row with the given hash. Unknown
// hashes are a no-op, matching the SQL UPDATE.
func (l *MemoryLedger) UpdateStatus(_ context.Context, hash string, status models.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.byHash[hash]; ok {
		entry.Status = status
	}
	return nil
}

// MarkSuccess sets the terminal SUCCESS status and the forwarding reference.
func (l *MemoryLedger) MarkSuccess(_ context.Context, hash, extRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.byHash[hash]; ok {
		entry.Status = models.StatusSuccess
		if extRef != "" {
			entry.ExternalRef = extRef
		}
	}
	return nil
}

// FindMatchingOriginal returns the newest STORED non-reversal row matching
// the criteria.
func (l *MemoryLedger) FindMatchingOriginal(_ context.Context, criteria models.MatchingCriteria) (*models.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var best *models.LedgerEntry
	for _, entry := range l.entries {
		if entry.IsReversal || entry.Status != models.StatusStored {
			continue
		}
		if !entry.Amount.Equal(criteria.Amount) || entry.Currency != criteria.Currency {
			continue
		}
		if entry.DebtorBIC != criteria.DebtorBIC || entry.CreditorBIC != criteria.CreditorBIC {
			continue
		}
		if criteria.DebtorAccount != "" && entry.DebtorAccount != criteria.DebtorAccount {
			continue
		}
		if criteria.CreditorAccount != "" && entry.CreditorAccount != criteria.CreditorAccount {
			continue
		}
		if best == nil || entry.CreatedAt.After(best.CreatedAt) {
			best = entry
		}
	}

	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

// List returns copies of all rows, newest first.
func (l *MemoryLedger) List(_ context.Context) ([]models.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]models.LedgerEntry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		entries = append(entries, *l.entries[i])
	}
	return entries, nil
}

// Ping always succeeds for the in-memory ledger.
func (l *MemoryLedger) Ping(_ context.Context) error {
	return nil
}

// insert assigns id and created_at and indexes the entry. Caller holds the
// write lock.
func (l *MemoryLedger) insert(entry *models.LedgerEntry) *models.LedgerEntry {
	stored := *entry
	stored.ID = l.nextID
	l.nextID++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = l.clock()
	}

	l.entries = append(l.entries, &stored)
	l.byHash[stored.TrxHash] = &stored
	return &stored
}
