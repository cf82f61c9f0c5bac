// Package pipeline drives the reversal watcher: fetch candidate documents,
// classify them, acknowledge confirmed reversals, forward the funds and
// record every step in the ledger. The ordering invariant is fixed:
// acknowledge before forward, forward before the success record.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"obs/reversal-watcher/internal/bakong"
	"obs/reversal-watcher/internal/interpreter"
	"obs/reversal-watcher/internal/ledger"
	"obs/reversal-watcher/internal/logging"
	"obs/reversal-watcher/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fetcher retrieves the raw documents waiting for one payee.
type Fetcher interface {
	Fetch(ctx context.Context, payeeCode string) ([]string, error)
}

// Interpreter turns one raw XML document into a canonical payment.
type Interpreter interface {
	Interpret(raw string) (*models.ParsedPayment, error)
}

// Matcher looks up the stored original a candidate would reverse.
type Matcher interface {
	FindOriginal(ctx context.Context, p *models.ParsedPayment) (*models.LedgerEntry, error)
}

// Verifier checks a blockchain-style hash against the network.
type Verifier interface {
	CheckTransactionByHash(ctx context.Context, hash string) (bakong.CheckResult, error)
}

// Acknowledger confirms receipt of a reversal to the source network.
type Acknowledger interface {
	Acknowledge(ctx context.Context, req bakong.AckRequest) (bakong.AckResult, error)
}

// Forwarder transfers the reversed amount to the clearing destination.
type Forwarder interface {
	Forward(ctx context.Context, amount decimal.Decimal, currency, destBIC, destAccount string) (string, error)
}

// Config carries the pipeline's routing parameters.
type Config struct {
	// PayeeCodes are the participant codes polled each run.
	PayeeCodes []string

	// DestinationBIC and DestinationAccount receive forwarded funds. Both
	// must be set; the pipeline refuses to drop a detected reversal when
	// the destination is incomplete.
	DestinationBIC     string
	DestinationAccount string

	// FallbackDebtorBIC and FallbackCreditorBIC fill acknowledgement
	// parties when the source message omits its own.
	FallbackDebtorBIC   string
	FallbackCreditorBIC string
}

// Pipeline wires the collaborators for one watcher instance. Safe for use
// from a single goroutine; the scheduler guarantees runs do not overlap.
type Pipeline struct {
	cfg     Config
	fetcher Fetcher
	interp  Interpreter
	matcher Matcher
	verify  Verifier
	acker   Acknowledger
	forward Forwarder
	ledger  ledger.Ledger
	log     logging.Logger
}

// New creates a pipeline over the given collaborators.
func New(cfg Config, fetcher Fetcher, interp Interpreter, matcher Matcher, verify Verifier, acker Acknowledger, forward Forwarder, l ledger.Ledger, log logging.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		interp:  interp,
		matcher: matcher,
		verify:  verify,
		acker:   acker,
		forward: forward,
		ledger:  l,
		log:     log,
	}
}

// Run executes one full pass over all configured payees. A failing payee or
// document is logged and counted but never aborts the rest of the batch.
func (p *Pipeline) Run(ctx context.Context) Summary {
	summary := Summary{RunID: uuid.NewString()}
	log := p.log.WithField("run_id", summary.RunID)
	log.Info("Reversal check starting",
		logging.Field{Key: "payees", Value: len(p.cfg.PayeeCodes)})

	for _, payee := range p.cfg.PayeeCodes {
		summary.Payees++
		docs, err := p.fetcher.Fetch(ctx, payee)
		if err != nil {
			summary.Failed++
			log.WithError(err).Error("Fetch failed for payee",
				logging.Field{Key: "payee", Value: payee})
			continue
		}

		for _, doc := range docs {
			summary.Documents++
			res, err := p.processDocument(ctx, doc, log)
			if res.reversal {
				summary.Reversals++
			}
			if err != nil {
				summary.Failed++
				log.WithError(err).Error("Document processing failed")
				continue
			}
			switch res.outcome {
			case outcomeForwarded:
				summary.Forwarded++
			case outcomeAlreadyProcessed:
				summary.AlreadyProcessed++
			case outcomeStored:
				summary.Stored++
			case outcomeSkipped:
				summary.Skipped++
			}
		}
	}

	log.Info("Reversal check finished",
		logging.Field{Key: "summary", Value: summary.String()})
	return summary
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeStored
	outcomeAlreadyProcessed
	outcomeForwarded
)

type docResult struct {
	outcome  outcome
	reversal bool
}

// processDocument runs one raw document through the full state machine.
// Returned errors leave the ledger row, if any, in its last recorded state;
// a later run picks the document up again from there.
func (p *Pipeline) processDocument(ctx context.Context, raw string, log logging.Logger) (docResult, error) {
	parsed, err := p.interp.Interpret(raw)
	if err != nil {
		log.WithError(err).Warn("Unparseable document skipped")
		return docResult{outcome: outcomeSkipped}, nil
	}
	if parsed.TransactionID == "" {
		log.Warn("Document without usable transaction id skipped",
			logging.Field{Key: "message_type", Value: parsed.MessageType})
		return docResult{outcome: outcomeSkipped}, nil
	}

	log = log.WithField("trx", parsed.TransactionID)

	// Ambiguous transfers get one chance at promotion via content pairing.
	var matched *models.LedgerEntry
	if !parsed.IsReversal {
		matched, err = p.matcher.FindOriginal(ctx, parsed)
		if err != nil {
			return docResult{}, fmt.Errorf("pairing lookup failed: %w", err)
		}
		if matched != nil {
			parsed.IsReversal = true
			log.Info("Payment promoted to reversal by content pairing")
		}
	}

	if !parsed.IsReversal {
		return p.storeOriginal(ctx, parsed, log)
	}

	res := docResult{reversal: true}

	if matched == nil {
		// Best-effort link to the original being reversed. A lookup
		// failure degrades the record, not the money movement.
		matched, err = p.matcher.FindOriginal(ctx, parsed)
		if err != nil {
			log.WithError(err).Warn("Original lookup failed, proceeding unlinked")
			matched = nil
		}
	}

	existing, err := p.ledger.GetByHash(ctx, parsed.TransactionID)
	if err != nil {
		return res, fmt.Errorf("ledger lookup failed: %w", err)
	}
	if existing != nil && existing.Status == models.StatusSuccess {
		log.Info("Reversal already processed, skipping")
		res.outcome = outcomeAlreadyProcessed
		return res, nil
	}

	if err := p.verifyHash(ctx, parsed, log); err != nil {
		return res, err
	}

	if p.cfg.DestinationBIC == "" || p.cfg.DestinationAccount == "" {
		return res, fmt.Errorf("forwarding destination not configured, refusing to drop reversal %s", parsed.TransactionID)
	}

	if existing == nil {
		entry := reversalEntry(parsed, matched)
		if _, err := p.ledger.Create(ctx, entry); err != nil {
			if !errors.Is(err, ledger.ErrDuplicateHash) {
				return res, fmt.Errorf("failed to record pending reversal: %w", err)
			}
			// Lost a race with an earlier run of ourselves. Re-read and
			// honor whatever state it reached.
			existing, err = p.ledger.GetByHash(ctx, parsed.TransactionID)
			if err != nil {
				return res, fmt.Errorf("ledger lookup failed: %w", err)
			}
			if existing != nil && existing.Status == models.StatusSuccess {
				res.outcome = outcomeAlreadyProcessed
				return res, nil
			}
		}
	}

	if err := p.acknowledge(ctx, parsed, log); err != nil {
		return res, err
	}

	extRef, err := p.forward.Forward(ctx, parsed.Amount, parsed.Currency,
		p.cfg.DestinationBIC, p.cfg.DestinationAccount)
	if err != nil {
		return res, fmt.Errorf("forward failed: %w", err)
	}
	parsed.ExternalRef = extRef

	if err := p.persistSuccess(ctx, parsed, matched); err != nil {
		return res, err
	}

	log.Info("Reversal forwarded",
		logging.Field{Key: "amount", Value: parsed.Amount.String()},
		logging.Field{Key: "currency", Value: parsed.Currency},
		logging.Field{Key: "ext_ref", Value: extRef})
	res.outcome = outcomeForwarded
	return res, nil
}

// storeOriginal records a non-reversal payment for future content pairing.
// Payments without both BICs cannot ever match and are skipped outright.
func (p *Pipeline) storeOriginal(ctx context.Context, parsed *models.ParsedPayment, log logging.Logger) (docResult, error) {
	if parsed.DebtorBIC == "" || parsed.CreditorBIC == "" {
		log.Debug("Original without both BICs skipped")
		return docResult{outcome: outcomeSkipped}, nil
	}

	entry := &models.LedgerEntry{
		TrxHash:         parsed.TransactionID,
		Amount:          parsed.Amount,
		Currency:        parsed.Currency,
		Status:          models.StatusStored,
		DebtorBIC:       parsed.DebtorBIC,
		CreditorBIC:     parsed.CreditorBIC,
		DebtorAccount:   parsed.DebtorAccount,
		CreditorAccount: parsed.CreditorAccount,
		ExternalRef:     parsed.ExternalRef,
		IsReversal:      false,
	}
	if err := p.ledger.StoreOriginal(ctx, entry); err != nil {
		return docResult{}, fmt.Errorf("failed to store original: %w", err)
	}
	log.Debug("Original payment stored for pairing")
	return docResult{outcome: outcomeStored}, nil
}

// verifyHash checks blockchain-style ids against the network. A semantic
// rejection aborts processing; an unreachable verifier does not, because the
// acknowledge-and-forward obligation outranks a best-effort double check.
func (p *Pipeline) verifyHash(ctx context.Context, parsed *models.ParsedPayment, log logging.Logger) error {
	if !interpreter.IsBlockchainHash(parsed.TransactionID) {
		return nil
	}
	result, err := p.verify.CheckTransactionByHash(ctx, parsed.TransactionID)
	if err != nil {
		log.WithError(err).Warn("Hash verification unavailable, proceeding")
		return nil
	}
	if !result.Valid() {
		return fmt.Errorf("hash verification rejected %s: code %d (%s)",
			parsed.TransactionID, result.ResponseCode, result.ResponseMessage)
	}
	return nil
}

func (p *Pipeline) acknowledge(ctx context.Context, parsed *models.ParsedPayment, log logging.Logger) error {
	req := bakong.AckRequest{
		OriginalMsgID:    firstNonEmpty(parsed.OriginalMsgID, parsed.TransactionID),
		OriginalPmtInfID: firstNonEmpty(parsed.OriginalPmtInfID, parsed.PmtInfID, parsed.TransactionID),
		Amount:           parsed.Amount,
		Currency:         parsed.Currency,
		DebtorBIC:        firstNonEmpty(parsed.DebtorBIC, p.cfg.FallbackDebtorBIC),
		CreditorBIC:      firstNonEmpty(parsed.CreditorBIC, p.cfg.FallbackCreditorBIC),
	}

	result, err := p.acker.Acknowledge(ctx, req)
	if err != nil {
		return fmt.Errorf("acknowledgement failed: %w", err)
	}
	if result.AlreadyAcknowledged {
		log.Info("Reversal was already acknowledged upstream")
	}

	// The status update is bookkeeping. Acknowledgement is idempotent, so a
	// failed write only means a redundant ack on the next attempt.
	if err := p.ledger.UpdateStatus(ctx, parsed.TransactionID, models.StatusAckSent); err != nil {
		log.WithError(err).Warn("Failed to record acknowledgement status")
	}
	return nil
}

// persistSuccess writes the terminal SUCCESS state, updating the pending row
// when one exists and inserting a complete row otherwise.
func (p *Pipeline) persistSuccess(ctx context.Context, parsed *models.ParsedPayment, matched *models.LedgerEntry) error {
	existing, err := p.ledger.GetByHash(ctx, parsed.TransactionID)
	if err != nil {
		return fmt.Errorf("ledger lookup failed: %w", err)
	}
	if existing != nil {
		if err := p.ledger.MarkSuccess(ctx, parsed.TransactionID, parsed.ExternalRef); err != nil {
			return fmt.Errorf("failed to record success: %w", err)
		}
		return nil
	}

	entry := reversalEntry(parsed, matched)
	entry.Status = models.StatusSuccess
	if _, err := p.ledger.Create(ctx, entry); err != nil && !errors.Is(err, ledger.ErrDuplicateHash) {
		return fmt.Errorf("failed to record success: %w", err)
	}
	return nil
}

func reversalEntry(parsed *models.ParsedPayment, matched *models.LedgerEntry) *models.LedgerEntry {
	entry := &models.LedgerEntry{
		TrxHash:         parsed.TransactionID,
		Amount:          parsed.Amount,
		Currency:        parsed.Currency,
		Status:          models.StatusPending,
		DebtorBIC:       parsed.DebtorBIC,
		CreditorBIC:     parsed.CreditorBIC,
		DebtorAccount:   parsed.DebtorAccount,
		CreditorAccount: parsed.CreditorAccount,
		ExternalRef:     parsed.ExternalRef,
		IsReversal:      true,
	}
	if matched != nil {
		id := matched.ID
		entry.OriginalTrxID = &id
	}
	return entry
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
