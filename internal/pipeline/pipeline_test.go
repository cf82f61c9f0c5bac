package pipeline

import (
	"context"
	"errors"
	"testing"

	"obs/reversal-watcher/internal/bakong"
	"obs/reversal-watcher/internal/ledger"
	"obs/reversal-watcher/internal/logging"
	"obs/reversal-watcher/internal/models"
	"obs/reversal-watcher/internal/pairing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"

// stubFetcher serves one fixed batch of documents per payee.
type stubFetcher struct {
	docs map[string][]string
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, payee string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[payee], nil
}

// stubInterpreter maps each raw document to a preset payment.
type stubInterpreter struct {
	payments map[string]*models.ParsedPayment
}

func (s *stubInterpreter) Interpret(raw string) (*models.ParsedPayment, error) {
	p, ok := s.payments[raw]
	if !ok {
		return nil, errors.New("unparseable")
	}
	copied := *p
	return &copied, nil
}

// scriptedGateway implements Verifier, Acknowledger and Forwarder and records
// the order of every side-effecting call.
type scriptedGateway struct {
	calls *[]string

	verifyResult bakong.CheckResult
	verifyErr    error
	ackResult    bakong.AckResult
	ackErr       error
	forwardErr   error

	ackCount     int
	forwardCount int
	lastAck      bakong.AckRequest
}

func (g *scriptedGateway) CheckTransactionByHash(_ context.Context, hash string) (bakong.CheckResult, error) {
	*g.calls = append(*g.calls, "verify")
	if g.verifyErr != nil {
		return bakong.CheckResult{}, g.verifyErr
	}
	return g.verifyResult, nil
}

func (g *scriptedGateway) Acknowledge(_ context.Context, req bakong.AckRequest) (bakong.AckResult, error) {
	*g.calls = append(*g.calls, "ack")
	g.ackCount++
	g.lastAck = req
	if g.ackErr != nil {
		return bakong.AckResult{}, g.ackErr
	}
	return g.ackResult, nil
}

func (g *scriptedGateway) Forward(_ context.Context, amount decimal.Decimal, currency, destBIC, destAccount string) (string, error) {
	*g.calls = append(*g.calls, "forward")
	g.forwardCount++
	if g.forwardErr != nil {
		return "", g.forwardErr
	}
	return "EXT-REF-1", nil
}

// recordingLedger wraps another ledger and appends status transitions to the
// shared call log.
type recordingLedger struct {
	ledger.Ledger
	calls *[]string
}

func (r *recordingLedger) Create(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	*r.calls = append(*r.calls, "create:"+string(entry.Status))
	return r.Ledger.Create(ctx, entry)
}

func (r *recordingLedger) UpdateStatus(ctx context.Context, hash string, status models.Status) error {
	*r.calls = append(*r.calls, "update:"+string(status))
	return r.Ledger.UpdateStatus(ctx, hash, status)
}

func (r *recordingLedger) MarkSuccess(ctx context.Context, hash, extRef string) error {
	*r.calls = append(*r.calls, "update:"+string(models.StatusSuccess))
	return r.Ledger.MarkSuccess(ctx, hash, extRef)
}

type fixture struct {
	pipeline *Pipeline
	gateway  *scriptedGateway
	ledger   *ledger.MemoryLedger
	calls    []string
}

func reversalPayment() *models.ParsedPayment {
	return &models.ParsedPayment{
		TransactionID:      testHash,
		IsReversal:         true,
		IsOfficialReversal: true,
		Amount:             decimal.NewFromInt(10000),
		Currency:           "KHR",
		DebtorBIC:          "BKRTKHPPXXX",
		CreditorBIC:        "TOURKHPPXXX",
		OriginalMsgID:      "ORIG-MSG-1",
		OriginalPmtInfID:   "ORIG-PMT-1",
		MessageType:        models.MessageTypeReversal,
	}
}

func newFixture(payments map[string]*models.ParsedPayment, docs []string) *fixture {
	f := &fixture{
		gateway: &scriptedGateway{},
		ledger:  ledger.NewMemoryLedger(),
	}
	f.gateway.calls = &f.calls

	log := &logging.MockLogger{}
	recorded := &recordingLedger{Ledger: f.ledger, calls: &f.calls}

	f.pipeline = New(Config{
		PayeeCodes:         []string{"payee-1"},
		DestinationBIC:     "NBCQKHPPXXX",
		DestinationAccount: "hq-account",
	},
		&stubFetcher{docs: map[string][]string{"payee-1": docs}},
		&stubInterpreter{payments: payments},
		pairing.NewEngine(recorded, log),
		f.gateway,
		f.gateway,
		f.gateway,
		recorded,
		log,
	)
	return f
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 1, summary.Reversals)
	assert.Equal(t, 1, summary.Forwarded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, f.gateway.ackCount)
	assert.Equal(t, 1, f.gateway.forwardCount)

	entry, err := f.ledger.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusSuccess, entry.Status)
	assert.True(t, entry.IsReversal)
	assert.Equal(t, "EXT-REF-1", entry.ExternalRef)
}

func TestRun_AckBeforeForwardBeforeSuccess(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})

	f.pipeline.Run(context.Background())

	assert.Equal(t, []string{
		"verify",
		"create:PENDING",
		"ack",
		"update:ACK_SENT",
		"forward",
		"update:SUCCESS",
	}, f.calls)
}

func TestRun_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})

	first := f.pipeline.Run(context.Background())
	second := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, first.Forwarded)
	assert.Equal(t, 0, second.Forwarded)
	assert.Equal(t, 1, second.AlreadyProcessed)
	assert.Equal(t, 1, f.gateway.forwardCount, "the funds move exactly once")
	assert.Equal(t, 1, f.gateway.ackCount)
}

func TestRun_RejectedVerdictPersistsNothing(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})
	f.gateway.verifyResult = bakong.CheckResult{ResponseCode: 5, ResponseMessage: "unknown hash"}

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Reversals)
	assert.Equal(t, 0, f.gateway.ackCount)
	assert.Equal(t, 0, f.gateway.forwardCount)

	entry, err := f.ledger.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Nil(t, entry, "a semantically rejected reversal leaves no row")
}

func TestRun_VerifierOutageDoesNotBlock(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})
	f.gateway.verifyErr = errors.New("connection refused")

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Forwarded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, f.gateway.forwardCount)
}

func TestRun_NonHashIDSkipsVerification(t *testing.T) {
	payment := reversalPayment()
	payment.TransactionID = "FT-NOT-A-HASH"
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": payment}, []string{"doc-1"})

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Forwarded)
	assert.NotContains(t, f.calls, "verify")
}

func TestRun_MissingDestinationFails(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})
	f.pipeline.cfg.DestinationBIC = ""

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, f.gateway.ackCount)
	assert.Equal(t, 0, f.gateway.forwardCount)

	entry, err := f.ledger.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRun_AckFailureLeavesPending(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})
	f.gateway.ackErr = errors.New("gateway down")

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, f.gateway.forwardCount, "no forward without acknowledgement")

	entry, err := f.ledger.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusPending, entry.Status)
}

func TestRun_ForwardFailureRecoversOnRetry(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": reversalPayment()}, []string{"doc-1"})
	f.gateway.forwardErr = errors.New("timeout")

	first := f.pipeline.Run(context.Background())
	assert.Equal(t, 1, first.Failed)

	entry, err := f.ledger.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusAckSent, entry.Status)

	// The next pass re-acknowledges (idempotent upstream) and completes.
	f.gateway.forwardErr = nil
	second := f.pipeline.Run(context.Background())
	assert.Equal(t, 1, second.Forwarded)
	assert.Equal(t, 1, f.gateway.forwardCount)

	entry, err = f.ledger.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, entry.Status)
}

func TestRun_OriginalIsStoredForPairing(t *testing.T) {
	payment := &models.ParsedPayment{
		TransactionID: "orig-tx-1",
		Amount:        decimal.NewFromInt(10000),
		Currency:      "KHR",
		DebtorBIC:     "TOURKHPPXXX",
		CreditorBIC:   "BKRTKHPPXXX",
	}
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": payment}, []string{"doc-1"})

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 0, f.gateway.ackCount)

	entry, err := f.ledger.GetByHash(context.Background(), "orig-tx-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusStored, entry.Status)
	assert.False(t, entry.IsReversal)
}

func TestRun_PairingPromotesAmbiguousTransfer(t *testing.T) {
	original := &models.ParsedPayment{
		TransactionID: "orig-tx-1",
		Amount:        decimal.NewFromInt(10000),
		Currency:      "KHR",
		DebtorBIC:     "TOURKHPPXXX",
		CreditorBIC:   "BKRTKHPPXXX",
	}
	refund := &models.ParsedPayment{
		TransactionID: "refund-tx-1",
		Amount:        decimal.NewFromInt(10000),
		Currency:      "KHR",
		DebtorBIC:     "BKRTKHPPXXX",
		CreditorBIC:   "TOURKHPPXXX",
	}

	f := newFixture(map[string]*models.ParsedPayment{
		"doc-orig":   original,
		"doc-refund": refund,
	}, []string{"doc-orig", "doc-refund"})

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 1, summary.Forwarded)
	assert.Equal(t, 1, summary.Reversals)

	entry, err := f.ledger.GetByHash(context.Background(), "refund-tx-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusSuccess, entry.Status)
	require.NotNil(t, entry.OriginalTrxID, "the forwarded reversal links its original")
}

func TestRun_UnparseableDocumentIsSkipped(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{}, []string{"garbage"})

	summary := f.pipeline.Run(context.Background())

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

func TestRun_EmptyTransactionIDIsSkipped(t *testing.T) {
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": {}}, []string{"doc-1"})

	summary := f.pipeline.Run(context.Background())
	assert.Equal(t, 1, summary.Skipped)
}

func TestRun_FetchFailureIsIsolated(t *testing.T) {
	f := newFixture(nil, nil)
	f.pipeline.fetcher = &stubFetcher{err: errors.New("network down")}

	summary := f.pipeline.Run(context.Background())
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Documents)
}

func TestRun_AckFallbackParties(t *testing.T) {
	payment := reversalPayment()
	payment.DebtorBIC = ""
	payment.CreditorBIC = ""
	f := newFixture(map[string]*models.ParsedPayment{"doc-1": payment}, []string{"doc-1"})
	f.pipeline.cfg.FallbackDebtorBIC = "BKRTKHPPXXX"
	f.pipeline.cfg.FallbackCreditorBIC = "TOURKHPPXXX"

	f.pipeline.Run(context.Background())

	assert.Equal(t, "BKRTKHPPXXX", f.gateway.lastAck.DebtorBIC)
	assert.Equal(t, "TOURKHPPXXX", f.gateway.lastAck.CreditorBIC)
	assert.Equal(t, "ORIG-MSG-1", f.gateway.lastAck.OriginalMsgID)
}
