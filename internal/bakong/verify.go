package bakong

import (
	"context"

	"obs/reversal-watcher/internal/logging"
)

// CheckResult is the Open API verdict for a transaction hash. ResponseCode
// zero means the transaction exists and is valid.
type CheckResult struct {
	ResponseCode    int    `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

// Valid reports whether the network confirmed the transaction.
func (r CheckResult) Valid() bool {
	return r.ResponseCode == 0
}

// CheckTransactionByHash verifies a blockchain-style transaction hash
// against the Bakong Open API.
func (c *Client) CheckTransactionByHash(ctx context.Context, hash string) (CheckResult, error) {
	var result CheckResult
	err := c.postJSON(ctx, "/check_transaction_by_hash", map[string]string{"hash": hash}, &result)
	if err != nil {
		return CheckResult{}, err
	}
	c.log.Debug("Hash verification response",
		logging.Field{Key: "hash", Value: hash},
		logging.Field{Key: "response_code", Value: result.ResponseCode})
	return result, nil
}
