package bakong

import (
	"context"
	"fmt"
	"time"

	"obs/reversal-watcher/internal/logging"
	"obs/reversal-watcher/internal/xmlutils"
)

// StrategyType selects how candidate documents are fetched from the network.
type StrategyType string

const (
	// StrategySOAP polls the raw XML transaction feed and classifies
	// heuristically.
	StrategySOAP StrategyType = "soap"

	// StrategyReport polls the structured Report API, which carries an
	// explicit reversed flag per row.
	StrategyReport StrategyType = "report"
)

// FetchStrategy retrieves the raw payment documents addressed to one
// monitored payee. The two implementations are mutually exclusive and
// selected by configuration.
type FetchStrategy interface {
	Fetch(ctx context.Context, payeeCode string) ([]string, error)
}

// NewFetchStrategy returns the configured strategy implementation.
func NewFetchStrategy(kind StrategyType, client *Client, tokens *TokenCache, reportURL string, log logging.Logger) (FetchStrategy, error) {
	switch kind {
	case StrategySOAP:
		return NewSOAPStrategy(client, log), nil
	case StrategyReport:
		return NewReportStrategy(client, tokens, reportURL, log), nil
	default:
		return nil, fmt.Errorf("unknown fetch strategy: %s", kind)
	}
}

// SOAPStrategy fetches via the getIncomingTransaction SOAP operation and
// splits the returned payload into individual XML documents.
type SOAPStrategy struct {
	client *Client
	log    logging.Logger
}

// NewSOAPStrategy creates the raw-XML polling strategy.
func NewSOAPStrategy(client *Client, log logging.Logger) *SOAPStrategy {
	return &SOAPStrategy{client: client, log: log}
}

var _ FetchStrategy = (*SOAPStrategy)(nil)

// Fetch returns the raw XML documents waiting for the payee, or an empty
// slice when the envelope carries no payload.
func (s *SOAPStrategy) Fetch(ctx context.Context, payeeCode string) ([]string, error) {
	inner := credentialFields(s.client.cfg.Username, s.client.cfg.Password) +
		fmt.Sprintf("\n         <web:payee_participant_code>%s</web:payee_participant_code>", payeeCode) +
		fmt.Sprintf("\n         <web:size>%d</web:size>", s.client.cfg.TransactionSize)

	envelope := soapEnvelope("getIncomingTransaction", inner)

	started := time.Now()
	response, err := s.client.sendSOAP(ctx, envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for %s: %w", payeeCode, err)
	}

	payload, err := xmlutils.ExtractSOAPReturn(response)
	if err != nil {
		return nil, fmt.Errorf("failed to extract payload for %s: %w", payeeCode, err)
	}
	if payload == "" {
		s.log.Debug("No transaction data for payee",
			logging.Field{Key: "payee", Value: payeeCode})
		return nil, nil
	}

	docs := xmlutils.SplitDocuments(payload)
	s.log.Info("Fetched transactions",
		logging.Field{Key: "payee", Value: payeeCode},
		logging.Field{Key: "count", Value: len(docs)},
		logging.Field{Key: "elapsed", Value: time.Since(started).String()})
	return docs, nil
}
