package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"obs/reversal-watcher/internal/models"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

const entryColumns = `id, trx_hash, amount, currency, status, created_at,
	COALESCE(debtor_bic, ''), COALESCE(creditor_bic, ''),
	COALESCE(debtor_account, ''), COALESCE(creditor_account, ''),
	COALESCE(ext_ref, ''), is_reversal, original_trx_id`

// PostgresLedger is the lib/pq-backed Ledger implementation over the
// transaction_logs table.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger wraps an open database handle.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

var _ Ledger = (*PostgresLedger)(nil)

// EnsureSchema creates the transaction_logs table and its indexes if they do
// not exist yet.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS transaction_logs (
		id               BIGSERIAL PRIMARY KEY,
		trx_hash         TEXT NOT NULL UNIQUE,
		amount           NUMERIC(20, 4) NOT NULL,
		currency         CHAR(3) NOT NULL,
		status           TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		debtor_bic       TEXT,
		creditor_bic     TEXT,
		debtor_account   TEXT,
		creditor_account TEXT,
		ext_ref          TEXT,
		is_reversal      BOOLEAN NOT NULL DEFAULT FALSE,
		original_trx_id  BIGINT REFERENCES transaction_logs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transaction_logs_pairing
		ON transaction_logs (amount, currency, debtor_bic, creditor_bic)
		WHERE NOT is_reversal;`

	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return nil
}

// Exists reports whether a row with this transaction hash exists.
func (l *PostgresLedger) Exists(ctx context.Context, hash string) (bool, error) {
	const query = `SELECT 1 FROM transaction_logs WHERE trx_hash = $1 LIMIT 1`

	var one int
	err := l.db.QueryRowContext(ctx, query, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByHash returns the row for the hash, or nil when absent.
func (l *PostgresLedger) GetByHash(ctx context.Context, hash string) (*models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM transaction_logs WHERE trx_hash = $1`

	entry, err := scanEntry(l.db.QueryRowContext(ctx, query, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Create inserts a new row, mapping a unique violation on trx_hash to
// ErrDuplicateHash.
func (l *PostgresLedger) Create(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	query := `
	INSERT INTO transaction_logs (
		trx_hash, amount, currency, status,
		debtor_bic, creditor_bic, debtor_account, creditor_account,
		ext_ref, is_reversal, original_trx_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING ` + entryColumns

	row := l.db.QueryRowContext(ctx, query,
		entry.TrxHash, entry.Amount, entry.Currency, string(entry.Status),
		nullIfEmpty(entry.DebtorBIC), nullIfEmpty(entry.CreditorBIC),
		nullIfEmpty(entry.DebtorAccount), nullIfEmpty(entry.CreditorAccount),
		nullIfEmpty(entry.ExternalRef), entry.IsReversal, entry.OriginalTrxID,
	)

	created, err := scanEntry(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateHash
		}
		return nil, err
	}
	return created, nil
}

// StoreOriginal inserts a STORED non-reversal row, ignoring an existing hash.
func (l *PostgresLedger) StoreOriginal(ctx context.Context, entry *models.LedgerEntry) error {
	const query = `
	INSERT INTO transaction_logs (
		trx_hash, amount, currency, status,
		debtor_bic, creditor_bic, debtor_account, creditor_account,
		ext_ref, is_reversal
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
	ON CONFLICT (trx_hash) DO NOTHING`

	_, err := l.db.ExecContext(ctx, query,
		entry.TrxHash, entry.Amount, entry.Currency, string(models.StatusStored),
		nullIfEmpty(entry.DebtorBIC), nullIfEmpty(entry.CreditorBIC),
		nullIfEmpty(entry.DebtorAccount), nullIfEmpty(entry.CreditorAccount),
		nullIfEmpty(entry.ExternalRef),
	)
	return err
}

// UpdateStatus sets the status of the row with the given hash.
func (l *PostgresLedger) UpdateStatus(ctx context.Context, hash string, status models.Status) error {
	const query = `UPDATE transaction_logs SET status = $2 WHERE trx_hash = $1`

	_, err := l.db.ExecContext(ctx, query, hash, string(status))
	return err
}

// MarkSuccess sets the terminal SUCCESS status and the forwarding reference.
// An empty extRef keeps whatever reference the row already carries.
func (l *PostgresLedger) MarkSuccess(ctx context.Context, hash, extRef string) error {
	const query = `
	UPDATE transaction_logs
	SET status = $2, ext_ref = COALESCE(NULLIF($3, ''), ext_ref)
	WHERE trx_hash = $1`

	_, err := l.db.ExecContext(ctx, query, hash, string(models.StatusSuccess), extRef)
	return err
}

// FindMatchingOriginal returns the newest STORED non-reversal row matching
// the criteria.
func (l *PostgresLedger) FindMatchingOriginal(ctx context.Context, criteria models.MatchingCriteria) (*models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + `
	FROM transaction_logs
	WHERE amount = $1
	  AND currency = $2
	  AND debtor_bic = $3
	  AND creditor_bic = $4
	  AND is_reversal = FALSE
	  AND status = $5`

	args := []interface{}{
		criteria.Amount, criteria.Currency,
		criteria.DebtorBIC, criteria.CreditorBIC,
		string(models.StatusStored),
	}

	if criteria.DebtorAccount != "" {
		args = append(args, criteria.DebtorAccount)
		query += fmt.Sprintf(" AND debtor_account = $%d", len(args))
	}
	if criteria.CreditorAccount != "" {
		args = append(args, criteria.CreditorAccount)
		query += fmt.Sprintf(" AND creditor_account = $%d", len(args))
	}

	query += " ORDER BY created_at DESC LIMIT 1"

	entry, err := scanEntry(l.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns all rows, newest first.
func (l *PostgresLedger) List(ctx context.Context) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM transaction_logs ORDER BY created_at DESC`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Ping verifies the database is reachable.
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*models.LedgerEntry, error) {
	var (
		entry  models.LedgerEntry
		status string
	)
	err := s.Scan(
		&entry.ID, &entry.TrxHash, &entry.Amount, &entry.Currency, &status,
		&entry.CreatedAt, &entry.DebtorBIC, &entry.CreditorBIC,
		&entry.DebtorAccount, &entry.CreditorAccount,
		&entry.ExternalRef, &entry.IsReversal, &entry.OriginalTrxID,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", entry.TrxHash, err)
	}
	entry.Status = parsed
	return &entry, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
