package inbox

import (
	"fmt"
	"time"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

// displayedInboxID resolves the inbox whose status is projected into the
// context's IsConnected: the first selected inbox, or the first available
// inbox when everything is selected. With no inbox list at all the backend's
// active inbox is the only candidate.
func displayedInboxID(ctx *model.SessionContext, sel model.InboxSelection) string {
	if !sel.IsAll() && len(sel.InboxIDs) > 0 {
		return sel.InboxIDs[0]
	}
	if len(ctx.AvailableInboxes) > 0 {
		return ctx.AvailableInboxes[0].ID
	}
	return ctx.InboxID
}

// project returns ctx with IsConnected taken from the displayed inbox. The
// same pointer is returned when nothing changes.
func project(ctx *model.SessionContext, sel model.InboxSelection) *model.SessionContext {
	if ctx == nil {
		return nil
	}
	inbox, ok := ctx.FindInbox(displayedInboxID(ctx, sel))
	if !ok || inbox.IsConnected == ctx.IsConnected {
		return ctx
	}
	out := ctx.Clone()
	out.IsConnected = inbox.IsConnected
	return out
}

// reconcile merges provider results into st. Matching inboxes are patched by
// id, the active inbox's transitions produce notifications, and the
// displayed status is recomputed when the active or displayed inbox was
// touched.
func reconcile(st State, results []model.StatusResult, now time.Time) (State, []model.Notification) {
	if st.Context == nil {
		return st, nil
	}

	next := st
	patched := st.Context.Clone()
	changed := false
	touched := make(map[string]bool)
	var notifications []model.Notification

	activeSeen := false
	activeValue := false

	for _, r := range results {
		if !r.Success {
			continue
		}

		if r.InboxID == patched.InboxID {
			if n, ok := statusTransition(next.active, patched, r, now); ok {
				notifications = append(notifications, n)
			}
			next.active = activeStatus{inboxID: r.InboxID, known: true, loggedIn: r.IsLoggedIn}
			activeSeen = true
			activeValue = r.IsLoggedIn
		}

		for i := range patched.AvailableInboxes {
			inbox := &patched.AvailableInboxes[i]
			if inbox.ID != r.InboxID {
				continue
			}
			touched[inbox.ID] = true
			if inbox.IsLoggedIn != r.IsLoggedIn || inbox.IsConnected != r.IsLoggedIn {
				inbox.IsLoggedIn = r.IsLoggedIn
				inbox.IsConnected = r.IsLoggedIn
				changed = true
			}
		}
	}

	displayed := displayedInboxID(patched, st.Selection)
	if touched[displayed] || activeSeen {
		connected := patched.IsConnected
		if inbox, ok := patched.FindInbox(displayed); ok {
			connected = inbox.IsConnected
		} else if activeSeen {
			connected = activeValue
		}
		if connected != patched.IsConnected {
			patched.IsConnected = connected
			changed = true
		}
	}

	if changed {
		next.Context = patched
	}
	return next, notifications
}

// statusTransition reports a notification only for a strict change of a
// previously observed value.
func statusTransition(prev activeStatus, ctx *model.SessionContext, r model.StatusResult, now time.Time) (model.Notification, bool) {
	if !prev.known || prev.inboxID != r.InboxID || prev.loggedIn == r.IsLoggedIn {
		return model.Notification{}, false
	}

	name := r.InboxID
	if inbox, ok := ctx.FindInbox(r.InboxID); ok && inbox.Name != "" {
		name = inbox.Name
	} else if ctx.InboxName != "" {
		name = ctx.InboxName
	}

	if r.IsLoggedIn {
		return model.Notification{
			Type:    model.NotificationInboxConnected,
			Level:   model.NotificationLevelSuccess,
			InboxID: r.InboxID,
			Message: fmt.Sprintf("%s connected", name),
			At:      now,
		}, true
	}
	return model.Notification{
		Type:    model.NotificationInboxDisconnected,
		Level:   model.NotificationLevelWarning,
		InboxID: r.InboxID,
		Message: fmt.Sprintf("%s disconnected", name),
		At:      now,
	}, true
}
