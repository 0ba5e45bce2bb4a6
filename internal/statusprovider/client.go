package statusprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

// Client queries the status provider for live inbox connection state.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ inbox.StatusProvider = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type batchRequest struct {
	InboxIDs []string `json:"inboxIds"`
}

type status struct {
	LoggedIn bool `json:"loggedIn"`
}

type batchResult struct {
	InboxID string  `json:"inboxId"`
	Success bool    `json:"success"`
	Status  *status `json:"status"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

type singleResponse struct {
	Success bool    `json:"success"`
	Status  *status `json:"status"`
}

// BatchStatus fetches the status of every inbox in one call. A result without
// a status payload is reported as unsuccessful.
func (c *Client) BatchStatus(ctx context.Context, inboxIDs []string) ([]model.StatusResult, error) {
	var resp batchResponse
	if err := c.do(ctx, http.MethodPost, "/inbox-status", batchRequest{InboxIDs: inboxIDs}, &resp); err != nil {
		return nil, err
	}

	results := make([]model.StatusResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, toResult(r.InboxID, r.Success, r.Status))
	}
	return results, nil
}

func (c *Client) InboxStatus(ctx context.Context, inboxID string) (model.StatusResult, error) {
	var resp singleResponse
	if err := c.do(ctx, http.MethodGet, "/inbox-status/"+url.PathEscape(inboxID), nil, &resp); err != nil {
		return model.StatusResult{}, err
	}
	return toResult(inboxID, resp.Success, resp.Status), nil
}

func toResult(inboxID string, success bool, s *status) model.StatusResult {
	if s == nil {
		return model.StatusResult{InboxID: inboxID}
	}
	return model.StatusResult{
		InboxID:    inboxID,
		Success:    success,
		IsLoggedIn: s.LoggedIn,
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Warn().
			Err(err).
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("status provider request error")
		return apperrors.External("status provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("status provider request failed")
		return apperrors.External("status provider", fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.External("status provider", fmt.Errorf("decode response: %w", err))
	}
	return nil
}
