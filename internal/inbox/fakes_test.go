package inbox

import (
	"context"
	"sync"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

type fakeBackend struct {
	mu         sync.Mutex
	context    *model.SessionContext
	err        error
	switchCtx  *model.SessionContext
	switchErr  error
	refreshCtx *model.SessionContext
	refreshErr error
}

func (f *fakeBackend) GetInboxContext(ctx context.Context) (*model.SessionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.context.Clone(), nil
}

func (f *fakeBackend) SwitchInbox(ctx context.Context, inboxID string) (*model.SessionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switchErr != nil {
		return nil, f.switchErr
	}
	return f.switchCtx.Clone(), nil
}

func (f *fakeBackend) RefreshInboxContext(ctx context.Context) (*model.SessionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshCtx.Clone(), nil
}

type fakeSelections struct {
	mu       sync.Mutex
	stored   model.InboxSelection
	getErr   error
	saveErr  error
	saves    int
	lastSave model.InboxSelection
}

func (f *fakeSelections) GetSelection(ctx context.Context) (model.InboxSelection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.InboxSelection{}, f.getErr
	}
	return f.stored, nil
}

func (f *fakeSelections) SaveSelection(ctx context.Context, selection model.InboxSelection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.lastSave = selection
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored = selection
	return nil
}

func (f *fakeSelections) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeSelections) last() model.InboxSelection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSave
}

type fakeProvider struct {
	mu         sync.Mutex
	statuses   map[string]bool
	batchErr   error
	batchCalls int
	singleErr  error
	// gate, when set, blocks BatchStatus until a value is received.
	gate chan struct{}
}

func (f *fakeProvider) BatchStatus(ctx context.Context, inboxIDs []string) ([]model.StatusResult, error) {
	f.mu.Lock()
	f.batchCalls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	results := make([]model.StatusResult, 0, len(inboxIDs))
	for _, id := range inboxIDs {
		loggedIn, ok := f.statuses[id]
		results = append(results, model.StatusResult{InboxID: id, Success: ok, IsLoggedIn: loggedIn})
	}
	return results, nil
}

func (f *fakeProvider) InboxStatus(ctx context.Context, inboxID string) (model.StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return model.StatusResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.singleErr != nil {
		return model.StatusResult{}, f.singleErr
	}
	loggedIn, ok := f.statuses[inboxID]
	return model.StatusResult{InboxID: inboxID, Success: ok, IsLoggedIn: loggedIn}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls
}

func (f *fakeProvider) set(id string, loggedIn bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = loggedIn
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []model.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingNotifier) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

func threeInboxContext() *model.SessionContext {
	return &model.SessionContext{
		AccountID: "acc-1",
		UserType:  model.UserTypeAgent,
		InboxID:   "b",
		InboxName: "Support",
		AvailableInboxes: []model.InboxSummary{
			{ID: "a", Name: "Sales", IsConnected: true, IsLoggedIn: true, UnreadCount: 3},
			{ID: "b", Name: "Support", IsConnected: false, IsLoggedIn: false, UnreadCount: 5, IsPrimary: true},
			{ID: "c", Name: "Billing", IsConnected: true, IsLoggedIn: true, UnreadCount: 1},
		},
		Permissions: []string{"view_contacts"},
	}
}
