package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/middleware"
	"github.com/openclaw/inbox-sync-go/internal/model"
	"github.com/openclaw/inbox-sync-go/internal/session"
	"github.com/openclaw/inbox-sync-go/internal/sse"
)

type fakeBackend struct {
	mu        sync.Mutex
	ctx       *model.SessionContext
	loadErr   error
	switchErr error
	loads     int
}

func (f *fakeBackend) GetInboxContext(ctx context.Context) (*model.SessionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.ctx.Clone(), nil
}

func (f *fakeBackend) SwitchInbox(ctx context.Context, inboxID string) (*model.SessionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switchErr != nil {
		return nil, f.switchErr
	}
	next := f.ctx.Clone()
	next.InboxID = inboxID
	return next, nil
}

func (f *fakeBackend) RefreshInboxContext(ctx context.Context) (*model.SessionContext, error) {
	return f.GetInboxContext(ctx)
}

type memorySelections struct {
	mu  sync.Mutex
	sel model.InboxSelection
}

func (m *memorySelections) GetSelection(ctx context.Context) (model.InboxSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel, nil
}

func (m *memorySelections) SaveSelection(ctx context.Context, selection model.InboxSelection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sel = selection
	return nil
}

type fakeProvider struct {
	err error
}

func (f *fakeProvider) BatchStatus(ctx context.Context, inboxIDs []string) ([]model.StatusResult, error) {
	return nil, errors.New("not polled in handler tests")
}

func (f *fakeProvider) InboxStatus(ctx context.Context, inboxID string) (model.StatusResult, error) {
	if f.err != nil {
		return model.StatusResult{}, f.err
	}
	return model.StatusResult{InboxID: inboxID, Success: true, IsLoggedIn: false}, nil
}

type testEnv struct {
	backend  *fakeBackend
	provider *fakeProvider
	broker   *sse.Broker
	manager  *session.Manager
	router   chi.Router
}

var testPrincipal = model.Principal{UserID: "user-1", SessionID: "sess-1", Token: "tok"}

func testContext() *model.SessionContext {
	return &model.SessionContext{
		AccountID: "acc-1",
		UserType:  model.UserTypeAgent,
		InboxID:   "a",
		InboxName: "Sales",
		AvailableInboxes: []model.InboxSummary{
			{ID: "a", Name: "Sales", IsConnected: true, IsLoggedIn: true, UnreadCount: 2},
			{ID: "b", Name: "Support", IsConnected: false, UnreadCount: 3},
		},
		Permissions: []string{inbox.PermissionSendMessages},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		backend:  &fakeBackend{ctx: testContext()},
		provider: &fakeProvider{},
		broker:   sse.NewBroker(nil),
	}
	selections := &memorySelections{sel: model.SelectAll()}
	env.manager = session.NewManager(func(p model.Principal) inbox.Deps {
		return inbox.Deps{
			Backend:    env.backend,
			Selections: selections,
			Provider:   env.provider,
		}
	}, env.broker, session.Config{IdleTTL: time.Hour})
	t.Cleanup(func() {
		env.manager.Close()
		env.broker.Close()
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Anonymous") != "" {
				next.ServeHTTP(w, r)
				return
			}
			p := testPrincipal
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), &p)))
		})
	})
	r.Mount("/v1/inbox", NewInboxHandler(env.manager).Routes())
	r.Get("/v1/events", NewEventsHandler(env.broker, env.manager).ServeHTTP)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (f *fakeBackend) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) inbox.View {
	t.Helper()
	var view inbox.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}
