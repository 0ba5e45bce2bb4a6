package inbox

import "github.com/openclaw/inbox-sync-go/internal/model"

// View is the read side of the facade: the state plus every derived field.
type View struct {
	Context              *model.SessionContext `json:"context"`
	IsLoading            bool                  `json:"isLoading"`
	Error                *model.LoadError      `json:"error"`
	Selection            model.InboxSelection  `json:"selection"`
	SelectedInboxIDs     []string              `json:"selectedInboxIds"`
	IsAllSelected        bool                  `json:"isAllSelected"`
	SelectedCount        int                   `json:"selectedCount"`
	TotalUnreadCount     int                   `json:"totalUnreadCount"`
	HasDisconnectedInbox bool                  `json:"hasDisconnectedInbox"`
	ActiveInbox          *model.InboxSummary   `json:"activeInbox"`
	AvailableInboxes     []model.InboxSummary  `json:"availableInboxes"`
	IsConnected          bool                  `json:"isConnected"`
	CanSendMessages      bool                  `json:"canSendMessages"`
}

func NewView(st State) View {
	inboxes := availableInboxes(st)
	selected := SelectedInboxIDs(st.Selection, inboxes)
	if selected == nil {
		selected = []string{}
	}
	if inboxes == nil {
		inboxes = []model.InboxSummary{}
	}

	view := View{
		Context:              st.Context,
		IsLoading:            st.IsLoading,
		Error:                st.Error,
		Selection:            st.Selection,
		SelectedInboxIDs:     selected,
		IsAllSelected:        st.Selection.IsAll(),
		SelectedCount:        len(selected),
		TotalUnreadCount:     TotalUnreadCount(st.Selection, inboxes),
		HasDisconnectedInbox: HasDisconnectedInbox(st.Selection, inboxes),
		AvailableInboxes:     inboxes,
		CanSendMessages:      hasPermission(st.Context, PermissionSendMessages),
	}

	if st.Context != nil {
		view.IsConnected = st.Context.IsConnected
		if active, ok := st.Context.FindInbox(st.Context.InboxID); ok {
			view.ActiveInbox = &active
		}
	}
	if view.Selection.Type == "" {
		view.Selection = model.SelectAll()
	}
	return view
}
