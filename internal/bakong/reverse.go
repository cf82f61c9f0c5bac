package bakong

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReverseTransaction sends an outbound pain.007 customer payment reversal
// via the makeReverseTransaction SOAP operation.
func (c *Client) ReverseTransaction(ctx context.Context, amount decimal.Decimal, currency, originalMsgID, originalPmtInfID, debtorAccount string) (string, error) {
	now := time.Now().UTC()
	payload, err := render(reversalTemplate, map[string]interface{}{
		"MsgID":             fmt.Sprintf("CRT%s%d", c.cfg.SenderBIC, now.UnixMilli()),
		"CreatedAt":         now.Format(time.RFC3339),
		"OriginalCreatedAt": now.Add(-6 * time.Minute).Format(time.RFC3339),
		"OriginalMsgID":     originalMsgID,
		"OriginalPmtInfID":  originalPmtInfID,
		"ReversalID":        fmt.Sprintf("FT%d", now.UnixMilli()),
		"Amount":            amount.String(),
		"Currency":          currency,
		"DebtorBIC":         c.cfg.SenderBIC,
		"CreditorBIC":       c.cfg.CounterpartyBIC,
		"DebtorAccount":     debtorAccount,
	})
	if err != nil {
		return "", err
	}

	inner := credentialFields(c.cfg.Username, c.cfg.Password) +
		fmt.Sprintf("\n         <web:content_message><![CDATA[%s]]></web:content_message>", payload)

	return c.sendSOAP(ctx, soapEnvelope("makeReverseTransaction", inner))
}
