// Package interpreter normalizes heterogeneous Bakong/NBC payment message
// shapes into one canonical ParsedPayment record and classifies reversals.
package interpreter

import (
	"encoding/xml"
	"regexp"
	"strings"

	"obs/reversal-watcher/internal/logging"
	"obs/reversal-watcher/internal/models"
	"obs/reversal-watcher/internal/xmlutils"

	"github.com/shopspring/decimal"
)

// reversalKeyword is the free-text marker the network places in remittance
// information. Matched case-sensitive, exactly as the source feeds emit it.
const reversalKeyword = "REVERSING"

// Default currencies when the message omits the Ccy attribute, matching the
// gateway's own defaults per message family.
const (
	defaultReversalCurrency = "KHR"
	defaultTransferCurrency = "USD"
)

var (
	trxHashPattern  = regexp.MustCompile(`trx_hash:([a-f0-9]{64})`)
	fullHashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// IsBlockchainHash reports whether id is a 64-character lowercase hex
// blockchain-style reference.
func IsBlockchainHash(id string) bool {
	return fullHashPattern.MatchString(id)
}

// Interpreter parses raw payment documents. The directional-refund pair is
// an operationally observed pattern: a transfer from the reversing
// institution back to the origin institution is a refund even without any
// other marker.
type Interpreter struct {
	reversingBIC string
	originBIC    string
	log          logging.Logger
}

// New creates an Interpreter. reversingBIC is the debtor side and originBIC
// the creditor side of the hard-coded directional refund pattern; both are
// normalized before comparison.
func New(reversingBIC, originBIC string, log logging.Logger) *Interpreter {
	return &Interpreter{
		reversingBIC: NormalizeBIC(reversingBIC),
		originBIC:    NormalizeBIC(originBIC),
		log:          log,
	}
}

// Interpret parses a raw payment-message document into a canonical
// ParsedPayment. Unrecognized shapes yield a payment with an empty
// TransactionID, which callers must treat as non-actionable.
func (i *Interpreter) Interpret(raw string) (*models.ParsedPayment, error) {
	clean := xmlutils.StripCDATA(raw)

	var doc models.PaymentDocument
	if err := xml.Unmarshal([]byte(clean), &doc); err != nil {
		return nil, &ParseError{Shape: "payment", Err: err}
	}

	switch {
	case doc.CstmrPmtRvsl != nil:
		return i.interpretReversal(doc.CstmrPmtRvsl), nil
	case doc.CstmrCdtTrfInitn != nil || doc.FIToFICdtTrf != nil:
		return i.interpretCreditTransfer(&doc), nil
	default:
		i.log.Debug("Unrecognized payment message shape, skipping")
		return &models.ParsedPayment{}, nil
	}
}

// interpretReversal handles the official pain.007 reversal shape. The shape
// alone is authoritative: both reversal flags are set unconditionally.
func (i *Interpreter) interpretReversal(rvsl *models.CustomerPaymentReversal) *models.ParsedPayment {
	tx := &rvsl.OrgnlPmtInfAndRvsl.TxInf

	originalMsgID := rvsl.OrgnlGrpInf.OrgnlMsgID
	currentMsgID := rvsl.GrpHdr.MsgID
	originalPmtInfID := rvsl.OrgnlPmtInfAndRvsl.OrgnlPmtInfID

	// Dedup id preference: the reversed message's id, then our own message
	// id, then the reversal id.
	transactionID := originalMsgID
	if transactionID == "" {
		transactionID = currentMsgID
	}
	if transactionID == "" {
		transactionID = tx.RvslID
	}

	amt := rvsl.ReversedAmount()
	currency := amt.Ccy
	if currency == "" {
		currency = defaultReversalCurrency
	}

	return &models.ParsedPayment{
		TransactionID:      transactionID,
		IsReversal:         true,
		IsOfficialReversal: true,
		Amount:             i.parseAmount(amt.Value),
		Currency:           currency,
		DebtorBIC:          NormalizeBIC(rvsl.DebtorBIC()),
		CreditorBIC:        NormalizeBIC(rvsl.CreditorBIC()),
		DebtorAccount:      tx.OrgnlTxRef.DbtrAcct.ID.Othr.ID,
		CreditorAccount:    tx.OrgnlTxRef.CdtrAcct.ID.Othr.ID,
		OriginalMsgID:      originalMsgID,
		OriginalPmtInfID:   originalPmtInfID,
		EndToEndID:         tx.RvslID,
		MsgID:              currentMsgID,
		PmtInfID:           originalPmtInfID,
		ExternalRef:        originalPmtInfID,
		MessageType:        models.MessageTypeReversal,
	}
}

// interpretCreditTransfer handles pain.001 and FI-to-FI transfers, which may
// carry refund semantics. Classification is the OR of independent signals;
// the content-pairing signal is resolved later by the pairing engine, this
// only supplies the fields it needs.
func (i *Interpreter) interpretCreditTransfer(doc *models.PaymentDocument) *models.ParsedPayment {
	var (
		tx              *models.CreditTransferTx
		msgID           string
		pmtInfID        string
		debtorBIC       string
		debtorAccount   string
		directionalPair bool
	)

	if doc.FIToFICdtTrf != nil {
		tx = &doc.FIToFICdtTrf.CdtTrfTxInf
		msgID = doc.FIToFICdtTrf.GrpHdr.MsgID
	} else {
		init := doc.CstmrCdtTrfInitn
		tx = &init.PmtInf.CdtTrfTxInf
		msgID = init.GrpHdr.MsgID
		pmtInfID = init.PmtInf.PmtInfID
		debtorBIC = NormalizeBIC(init.PmtInf.DbtrAgt.FinInstnID.BICFI)
		debtorAccount = init.PmtInf.DbtrAcct.ID.Othr.ID

		// Direction signal: funds flowing reversing institution → origin
		// institution are a refund by definition, keyword or not. Only the
		// customer transfer shape carries both agents.
		creditorBIC := NormalizeBIC(tx.CdtrAgt.FinInstnID.BICFI)
		directionalPair = debtorBIC == i.reversingBIC && creditorBIC == i.originBIC
	}

	remittance := tx.RemittanceInfo()
	keywordSignal := strings.Contains(remittance, reversalKeyword)

	transactionID := msgID
	if m := trxHashPattern.FindStringSubmatch(remittance); m != nil {
		transactionID = m[1]
	}

	currency := tx.Amt.InstdAmt.Ccy
	if currency == "" {
		currency = defaultTransferCurrency
	}

	return &models.ParsedPayment{
		TransactionID:    transactionID,
		IsReversal:       keywordSignal || directionalPair,
		Amount:           i.parseAmount(tx.Amt.InstdAmt.Value),
		Currency:         currency,
		DebtorBIC:        debtorBIC,
		CreditorBIC:      NormalizeBIC(tx.CdtrAgt.FinInstnID.BICFI),
		DebtorAccount:    debtorAccount,
		CreditorAccount:  tx.CdtrAcct.ID.Othr.ID,
		OriginalMsgID:    msgID,
		OriginalPmtInfID: pmtInfID,
		EndToEndID:       tx.PmtID.EndToEndID,
		MsgID:            msgID,
		PmtInfID:         pmtInfID,
		ExternalRef:      pmtInfID,
		MessageType:      models.MessageTypeCreditTransfer,
	}
}

func (i *Interpreter) parseAmount(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		i.log.WithError(err).Warn("Failed to parse amount, using zero",
			logging.Field{Key: "value", Value: value})
		return decimal.Zero
	}
	return amount
}
