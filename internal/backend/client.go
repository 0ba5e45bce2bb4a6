package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

const maxErrorBody = 64 << 10

// Client talks to the messaging-account backend. It is shared by every
// session; per-user calls go through ForToken.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ForToken binds the client to one user's session token.
func (c *Client) ForToken(token string) *UserClient {
	u := &UserClient{client: c}
	u.token.Store(&token)
	return u
}

// UserClient is the backend as seen by one signed-in user. The token can be
// replaced when the user's session token is refreshed.
type UserClient struct {
	client *Client
	token  atomic.Pointer[string]
}

// SetToken replaces the bearer token used by subsequent calls.
func (u *UserClient) SetToken(token string) {
	u.token.Store(&token)
}

var (
	_ inbox.Backend        = (*UserClient)(nil)
	_ inbox.SelectionStore = (*UserClient)(nil)
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type switchInboxRequest struct {
	InboxID string `json:"inboxId"`
}

type saveSelectionRequest struct {
	Selection model.InboxSelection `json:"selection"`
}

func (u *UserClient) GetInboxContext(ctx context.Context) (*model.SessionContext, error) {
	var sessionCtx model.SessionContext
	if err := u.do(ctx, http.MethodGet, "/inbox-context", nil, &sessionCtx); err != nil {
		return nil, err
	}
	return &sessionCtx, nil
}

func (u *UserClient) SwitchInbox(ctx context.Context, inboxID string) (*model.SessionContext, error) {
	var sessionCtx model.SessionContext
	if err := u.do(ctx, http.MethodPost, "/switch-inbox", switchInboxRequest{InboxID: inboxID}, &sessionCtx); err != nil {
		return nil, err
	}
	return &sessionCtx, nil
}

func (u *UserClient) RefreshInboxContext(ctx context.Context) (*model.SessionContext, error) {
	var sessionCtx model.SessionContext
	if err := u.do(ctx, http.MethodPost, "/refresh-inbox-context", nil, &sessionCtx); err != nil {
		return nil, err
	}
	return &sessionCtx, nil
}

// GetSelection returns the stored selection. A user who never stored one gets
// the "all" selection.
func (u *UserClient) GetSelection(ctx context.Context) (model.InboxSelection, error) {
	var selection model.InboxSelection
	err := u.do(ctx, http.MethodGet, "/inbox-selection", nil, &selection)
	if apperrors.GetCode(err) == apperrors.ErrCodeNotFound {
		return model.SelectAll(), nil
	}
	if err != nil {
		return model.InboxSelection{}, err
	}
	return selection, nil
}

func (u *UserClient) SaveSelection(ctx context.Context, selection model.InboxSelection) error {
	return u.do(ctx, http.MethodPost, "/inbox-selection", saveSelectionRequest{Selection: selection}, nil)
}

func (u *UserClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.client.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+*u.token.Load())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := u.client.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("backend request error")
		return apperrors.External("backend", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("backend request failed")
		return errorFromResponse(resp)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("backend request")

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.External("backend", fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	var payload errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&payload)

	switch apperrors.ErrorCode(payload.Code) {
	case apperrors.ErrCodeNoAccount:
		return apperrors.NoAccount()
	case apperrors.ErrCodeNoInbox:
		return apperrors.NoInbox()
	}

	message := payload.Message
	if message == "" {
		message = payload.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if message == "" {
			message = "Backend rejected the session token"
		}
		return apperrors.Unauthorized(message)
	case http.StatusNotFound:
		return apperrors.NotFound("Backend resource")
	}

	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return apperrors.External("backend", fmt.Errorf("status %d: %s", resp.StatusCode, message))
}
