// Package bakong implements the gateway collaborators for the NBC Bakong
// network: the SOAP transaction service, the Open API REST endpoints and
// the Report API, plus the JWT token cache used for bearer auth.
package bakong

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"obs/reversal-watcher/internal/logging"
)

// APIError is a non-2xx response from a Bakong HTTP endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bakong API error: status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the error is a transient server failure.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 && e.Status < 600
}

// ClientConfig carries the endpoints and credentials for the gateway.
type ClientConfig struct {
	SOAPURL string
	APIURL  string
	APIKey  string

	Username string
	Password string

	// SenderBIC and SenderAccount identify the monitored institution in
	// outbound payloads.
	SenderBIC     string
	SenderAccount string
	SenderName    string

	// CounterpartyBIC is the institution on the other side of outbound
	// reversal messages.
	CounterpartyBIC string

	// TransactionSize caps how many transactions one fetch returns.
	TransactionSize int

	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Client is the HTTP transport shared by all gateway operations. All calls
// are synchronous round trips with a bounded timeout.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	log        logging.Logger
}

// NewClient creates a gateway client. Zero retry/timeout settings fall back
// to conservative defaults.
func NewClient(cfg ClientConfig, log logging.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TransactionSize <= 0 {
		cfg.TransactionSize = 200
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// sendSOAP posts a SOAP envelope to the transaction service and returns the
// raw response body.
func (c *Client) sendSOAP(ctx context.Context, envelope string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SOAPURL,
		bytes.NewBufferString(envelope))
	if err != nil {
		return "", fmt.Errorf("failed to build SOAP request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml;charset=UTF-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send SOAP request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read SOAP response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

// postJSON posts a JSON payload to an Open API endpoint and decodes the
// response into out. Transient 5xx responses are retried with exponential
// backoff up to MaxRetries attempts.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = c.postJSONOnce(ctx, endpoint, body, out)
		if lastErr == nil {
			return nil
		}

		apiErr, ok := lastErr.(*APIError)
		if !ok || !apiErr.Retryable() || attempt == c.cfg.MaxRetries {
			return lastErr
		}

		delay := c.cfg.RetryDelay * (1 << (attempt - 1))
		c.log.Warn("Transient API error, retrying",
			logging.Field{Key: "endpoint", Value: endpoint},
			logging.Field{Key: "status", Value: apiErr.Status},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "delay", Value: delay.String()})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) postJSONOnce(ctx context.Context, endpoint string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read API response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode API response: %w", err)
	}
	return nil
}
