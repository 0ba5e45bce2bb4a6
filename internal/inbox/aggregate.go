package inbox

import (
	"slices"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

func SelectedInboxIDs(sel model.InboxSelection, inboxes []model.InboxSummary) []string {
	if !sel.IsAll() {
		return slices.Clone(sel.InboxIDs)
	}
	ids := make([]string, 0, len(inboxes))
	for _, inbox := range inboxes {
		ids = append(ids, inbox.ID)
	}
	return ids
}

func TotalUnreadCount(sel model.InboxSelection, inboxes []model.InboxSummary) int {
	total := 0
	for _, inbox := range inboxes {
		if sel.Contains(inbox.ID) {
			total += inbox.UnreadCount
		}
	}
	return total
}

func HasDisconnectedInbox(sel model.InboxSelection, inboxes []model.InboxSummary) bool {
	for _, inbox := range inboxes {
		if sel.Contains(inbox.ID) && !inbox.IsConnected {
			return true
		}
	}
	return false
}
