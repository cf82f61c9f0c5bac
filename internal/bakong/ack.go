package bakong

import (
	"context"
	"fmt"
	"strings"
	"time"

	"obs/reversal-watcher/internal/logging"

	"github.com/shopspring/decimal"
)

// AckRequest identifies the reversal being acknowledged to the source
// network.
type AckRequest struct {
	OriginalMsgID    string
	OriginalPmtInfID string
	Amount           decimal.Decimal
	Currency         string
	DebtorBIC        string
	CreditorBIC      string
}

// AckResult reports a successful acknowledgement. AlreadyAcknowledged is
// set when the gateway answered that the message was unknown or previously
// acknowledged, which callers treat the same as success.
type AckResult struct {
	AlreadyAcknowledged bool
}

// Acknowledge sends a pain.002 customer payment status report confirming
// receipt of the reversal via the makeAcknowledgement SOAP operation.
func (c *Client) Acknowledge(ctx context.Context, req AckRequest) (AckResult, error) {
	now := time.Now().UTC()
	payload, err := render(ackTemplate, map[string]interface{}{
		"MsgID":            fmt.Sprintf("ACK%s%d", req.DebtorBIC, now.UnixMilli()),
		"CreatedAt":        now.Format(time.RFC3339),
		"OriginalMsgID":    req.OriginalMsgID,
		"OriginalPmtInfID": req.OriginalPmtInfID,
		"Amount":           req.Amount.String(),
		"Currency":         req.Currency,
		"DebtorBIC":        req.DebtorBIC,
		"CreditorBIC":      req.CreditorBIC,
	})
	if err != nil {
		return AckResult{}, err
	}

	inner := credentialFields(c.cfg.Username, c.cfg.Password) +
		fmt.Sprintf("\n         <web:content_message><![CDATA[%s]]></web:content_message>", payload)

	_, err = c.sendSOAP(ctx, soapEnvelope("makeAcknowledgement", inner))
	if err != nil {
		if isAlreadyAcknowledged(err) {
			c.log.Info("Acknowledgement reported as already handled",
				logging.Field{Key: "original_msg_id", Value: req.OriginalMsgID})
			return AckResult{AlreadyAcknowledged: true}, nil
		}
		return AckResult{}, fmt.Errorf("acknowledgement failed for %s: %w", req.OriginalMsgID, err)
	}

	c.log.Info("Acknowledgement accepted",
		logging.Field{Key: "original_msg_id", Value: req.OriginalMsgID})
	return AckResult{}, nil
}

// isAlreadyAcknowledged recognizes the gateway fault texts that mean the
// message was handled on a previous attempt. Those are idempotent success,
// not failure.
func isAlreadyAcknowledged(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "not found") ||
		strings.Contains(body, "already acknowledged")
}
