package inbox

import (
	"context"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

// Backend is the messaging-account backend. Errors carrying the NO_ACCOUNT or
// NO_INBOX codes mean the user has nothing to show yet.
type Backend interface {
	GetInboxContext(ctx context.Context) (*model.SessionContext, error)
	SwitchInbox(ctx context.Context, inboxID string) (*model.SessionContext, error)
	RefreshInboxContext(ctx context.Context) (*model.SessionContext, error)
}

type SelectionStore interface {
	GetSelection(ctx context.Context) (model.InboxSelection, error)
	SaveSelection(ctx context.Context, selection model.InboxSelection) error
}

// StatusProvider is the source of truth for live inbox connection state.
type StatusProvider interface {
	BatchStatus(ctx context.Context, inboxIDs []string) ([]model.StatusResult, error)
	InboxStatus(ctx context.Context, inboxID string) (model.StatusResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.Notification) {}
