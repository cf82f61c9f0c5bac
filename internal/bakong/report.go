package bakong

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"obs/reversal-watcher/internal/logging"
)

// ReportRow is one transaction row from the Report API. The endpoint
// classifies reversals itself; rows carry the original message payload when
// available.
type ReportRow struct {
	Hash     string `json:"hash"`
	Reversed bool   `json:"reversed"`
	RawXML   string `json:"rawXml"`
}

// ReportStrategy polls the structured Report API with bearer auth from the
// token cache and trusts its explicit reversed flag: only reversed rows are
// handed to the pipeline.
type ReportStrategy struct {
	client    *Client
	tokens    *TokenCache
	reportURL string
	log       logging.Logger
}

// NewReportStrategy creates the Report API strategy.
func NewReportStrategy(client *Client, tokens *TokenCache, reportURL string, log logging.Logger) *ReportStrategy {
	return &ReportStrategy{
		client:    client,
		tokens:    tokens,
		reportURL: reportURL,
		log:       log,
	}
}

var _ FetchStrategy = (*ReportStrategy)(nil)

// Fetch returns the raw documents of reversed report rows for the payee.
// A 401 invalidates the cached token and the request is retried once with a
// fresh one.
func (s *ReportStrategy) Fetch(ctx context.Context, payeeCode string) ([]string, error) {
	rows, err := s.fetchRows(ctx, payeeCode)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusUnauthorized {
		s.tokens.Invalidate()
		rows, err = s.fetchRows(ctx, payeeCode)
	}
	if err != nil {
		return nil, fmt.Errorf("report fetch for %s failed: %w", payeeCode, err)
	}

	var docs []string
	for _, row := range rows {
		if !row.Reversed {
			continue
		}
		if row.RawXML == "" {
			s.log.Warn("Reversed report row carries no payload, skipping",
				logging.Field{Key: "hash", Value: row.Hash})
			continue
		}
		docs = append(docs, row.RawXML)
	}

	s.log.Info("Fetched report rows",
		logging.Field{Key: "payee", Value: payeeCode},
		logging.Field{Key: "rows", Value: len(rows)},
		logging.Field{Key: "reversed", Value: len(docs)})
	return docs, nil
}

func (s *ReportStrategy) fetchRows(ctx context.Context, payeeCode string) ([]ReportRow, error) {
	token, err := s.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain bearer token: %w", err)
	}

	url := fmt.Sprintf("%s?participant=%s", s.reportURL, payeeCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var decoded struct {
		Data []ReportRow `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode report response: %w", err)
	}
	return decoded.Data, nil
}
