// Package pairing matches reversal candidates against previously stored
// original payments by swapped-direction field equality.
package pairing

import (
	"context"

	"obs/reversal-watcher/internal/ledger"
	"obs/reversal-watcher/internal/logging"
	"obs/reversal-watcher/internal/models"
)

// Engine looks up stored originals for the content-pairing signal. The same
// query serves two purposes: promoting an ambiguous payment to a reversal,
// and linking a confirmed reversal to the original it reverses.
type Engine struct {
	ledger ledger.Ledger
	log    logging.Logger
}

// NewEngine creates a pairing engine over the given ledger.
func NewEngine(l ledger.Ledger, log logging.Logger) *Engine {
	return &Engine{ledger: l, log: log}
}

// FindOriginal searches for a stored original whose direction is the swap of
// the candidate's: the original's debtor is the candidate's creditor and
// vice versa, with equal amount and currency. Account fields narrow the
// match only when the candidate carries them. Returns nil when the
// candidate lacks BICs or nothing matches.
func (e *Engine) FindOriginal(ctx context.Context, p *models.ParsedPayment) (*models.LedgerEntry, error) {
	if p.DebtorBIC == "" || p.CreditorBIC == "" {
		return nil, nil
	}

	criteria := models.MatchingCriteria{
		Amount:          p.Amount,
		Currency:        p.Currency,
		DebtorBIC:       p.CreditorBIC,
		CreditorBIC:     p.DebtorBIC,
		DebtorAccount:   p.CreditorAccount,
		CreditorAccount: p.DebtorAccount,
	}

	match, err := e.ledger.FindMatchingOriginal(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if match != nil {
		e.log.Info("Content pairing matched a stored original",
			logging.Field{Key: "original_id", Value: match.ID},
			logging.Field{Key: "original_direction", Value: match.DebtorBIC + " -> " + match.CreditorBIC},
			logging.Field{Key: "candidate_direction", Value: p.DebtorBIC + " -> " + p.CreditorBIC})
	}
	return match, nil
}
