package bakong

import (
	"context"
	"fmt"
	"time"

	"obs/reversal-watcher/internal/logging"

	"github.com/shopspring/decimal"
)

// Forward transfers the reversed amount to the downstream clearing
// destination via the makeFullFundTransfer SOAP operation. The returned
// reference is the ext_ref the gateway records for the transfer.
func (c *Client) Forward(ctx context.Context, amount decimal.Decimal, currency, destBIC, destAccount string) (string, error) {
	payload, extRef, err := c.transferPayload(amount, currency, destBIC, destAccount, time.Now())
	if err != nil {
		return "", err
	}

	inner := credentialFields(c.cfg.Username, c.cfg.Password) +
		fmt.Sprintf("\n         <web:ext_ref>%s</web:ext_ref>", extRef) +
		fmt.Sprintf("\n         <web:iso_message><![CDATA[%s]]></web:iso_message>", payload)

	if _, err := c.sendSOAP(ctx, soapEnvelope("makeFullFundTransfer", inner)); err != nil {
		return "", fmt.Errorf("forward to %s failed: %w", destBIC, err)
	}

	c.log.Info("Forwarded reversal amount",
		logging.Field{Key: "amount", Value: amount.String()},
		logging.Field{Key: "currency", Value: currency},
		logging.Field{Key: "destination_bic", Value: destBIC},
		logging.Field{Key: "ext_ref", Value: extRef})
	return extRef, nil
}
