// Package models provides the data structures used throughout the application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message type identifiers for the shapes the interpreter recognizes.
const (
	MessageTypeReversal       = "pain.007.001.05"
	MessageTypeCreditTransfer = "pain.001.001.05"
)

// ParsedPayment is the canonical record produced by the message interpreter,
// one per raw XML document. A payment with an empty TransactionID is
// non-actionable and must be skipped by the pipeline.
type ParsedPayment struct {
	// TransactionID is the identifier used for deduplication. It is derived
	// from the trx_hash remittance marker, the original message id or the
	// message's own id, depending on the message shape.
	TransactionID string

	// IsReversal is true when any of the classification signals fired.
	IsReversal bool

	// IsOfficialReversal is true only for the pain.007 reversal shape.
	IsOfficialReversal bool

	Amount   decimal.Decimal
	Currency string

	// DebtorBIC and CreditorBIC are normalized to the 11-character form.
	DebtorBIC   string
	CreditorBIC string

	DebtorAccount   string
	CreditorAccount string

	// OriginalMsgID and OriginalPmtInfID reference the payment being
	// reversed, when the message carries them.
	OriginalMsgID    string
	OriginalPmtInfID string

	EndToEndID  string
	MsgID       string
	PmtInfID    string
	ExternalRef string
	MessageType string
}

// MatchingCriteria is the ephemeral query used by the pairing engine to look
// up a stored original. BICs and accounts are already swapped relative to
// the reversal candidate by the time this struct is built.
type MatchingCriteria struct {
	Amount      decimal.Decimal
	Currency    string
	DebtorBIC   string
	CreditorBIC string

	// Accounts narrow the match only when present on the candidate.
	DebtorAccount   string
	CreditorAccount string
}

// LedgerEntry is one persisted row of the transaction ledger, keyed by the
// transaction hash. Reversal rows may reference the original entry they
// reverse via OriginalTrxID; originals carry no back-reference.
type LedgerEntry struct {
	ID              int64           `csv:"id"`
	TrxHash         string          `csv:"trx_hash"`
	Amount          decimal.Decimal `csv:"amount"`
	Currency        string          `csv:"currency"`
	Status          Status          `csv:"status"`
	CreatedAt       time.Time       `csv:"created_at"`
	DebtorBIC       string          `csv:"debtor_bic"`
	CreditorBIC     string          `csv:"creditor_bic"`
	DebtorAccount   string          `csv:"debtor_account"`
	CreditorAccount string          `csv:"creditor_account"`
	ExternalRef     string          `csv:"ext_ref"`
	IsReversal      bool            `csv:"is_reversal"`
	OriginalTrxID   *int64          `csv:"original_trx_id"`
}
