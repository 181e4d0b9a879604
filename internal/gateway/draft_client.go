// Package gateway creates outbound email drafts through a remote,
// rate-limited drafts API. Drafts are reviewed by a human before
// sending; nothing here auto-sends mail.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var (
	// ErrRateLimited means the API returned 429 and retries were
	// exhausted.
	ErrRateLimited = errors.New("drafts API rate limited")

	// ErrDraftFailure covers every other transport or API error;
	// these are never retried.
	ErrDraftFailure = errors.New("draft creation failed")
)

// Config holds drafts API connection and retry policy settings. Retry
// policy is injected, never hardcoded, so it stays testable.
type Config struct {
	BaseURL     string
	APIToken    string
	Sender      string
	MaxRetries  int
	InitialWait time.Duration
}

// DraftClient talks to the remote drafts API.
type DraftClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDraftClient creates a drafts API client.
func NewDraftClient(cfg Config, logger *zap.Logger) *DraftClient {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = time.Second
	}
	return &DraftClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type draftRequest struct {
	Message struct {
		Raw string `json:"raw"`
	} `json:"message"`
}

type draftResponse struct {
	ID string `json:"id"`
}

// CreateDraft builds the RFC 822 message and submits it as a draft.
// On a 429 it retries with exponential backoff (initial wait doubled
// per attempt) up to the configured retry count; any other failure
// surfaces immediately as ErrDraftFailure.
func (c *DraftClient) CreateDraft(ctx context.Context, toEmail, subject, body string) (string, error) {
	raw, err := c.encodeMessage(toEmail, subject, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDraftFailure, err)
	}

	var req draftRequest
	req.Message.Raw = raw
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDraftFailure, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		id, retryable, err := c.post(ctx, payload)
		if err == nil {
			return id, nil
		}
		lastErr = err

		if !retryable {
			return "", err
		}

		if attempt < c.cfg.MaxRetries {
			backoff := c.cfg.InitialWait * time.Duration(1<<uint(attempt))
			c.logger.Warn("Drafts API rate limited, backing off",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.cfg.MaxRetries),
				zap.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrDraftFailure, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, c.cfg.MaxRetries+1, lastErr)
}

// post performs one draft creation attempt. The second return reports
// whether the failure is retryable (only a 429 is).
func (c *DraftClient) post(ctx context.Context, payload []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/drafts", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrDraftFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrDraftFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return "", true, fmt.Errorf("status 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", false, fmt.Errorf("%w: status %d: %s", ErrDraftFailure, resp.StatusCode, bytes.TrimSpace(data))
	}

	var out draftResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("%w: decoding response: %v", ErrDraftFailure, err)
	}
	if out.ID == "" {
		return "", false, fmt.Errorf("%w: response missing draft id", ErrDraftFailure)
	}
	return out.ID, false, nil
}

// encodeMessage builds the plain-text MIME message and returns it
// base64url-encoded, the wire form the drafts API expects.
func (c *DraftClient) encodeMessage(toEmail, subject, body string) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", c.cfg.Sender)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}
