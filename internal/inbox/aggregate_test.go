package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

func TestAggregates(t *testing.T) {
	inboxes := []model.InboxSummary{
		{ID: "a", UnreadCount: 3, IsConnected: true},
		{ID: "b", UnreadCount: 5, IsConnected: false},
	}

	t.Run("specific selection", func(t *testing.T) {
		sel := model.SelectSpecific("b")
		assert.Equal(t, []string{"b"}, SelectedInboxIDs(sel, inboxes))
		assert.Equal(t, 5, TotalUnreadCount(sel, inboxes))
		assert.True(t, HasDisconnectedInbox(sel, inboxes))
	})

	t.Run("all selection", func(t *testing.T) {
		sel := model.SelectAll()
		assert.Equal(t, []string{"a", "b"}, SelectedInboxIDs(sel, inboxes))
		assert.Equal(t, 8, TotalUnreadCount(sel, inboxes))
		assert.True(t, HasDisconnectedInbox(sel, inboxes))
	})

	t.Run("connected subset", func(t *testing.T) {
		sel := model.SelectSpecific("a")
		assert.Equal(t, 3, TotalUnreadCount(sel, inboxes))
		assert.False(t, HasDisconnectedInbox(sel, inboxes))
	})

	t.Run("no inboxes", func(t *testing.T) {
		assert.Empty(t, SelectedInboxIDs(model.SelectAll(), nil))
		assert.Zero(t, TotalUnreadCount(model.SelectAll(), nil))
		assert.False(t, HasDisconnectedInbox(model.SelectAll(), nil))
	})
}
