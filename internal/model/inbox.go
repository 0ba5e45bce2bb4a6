package model

import "slices"

// InboxSummary is one messaging inbox as seen by the session core.
// IsLoggedIn is the status provider's raw signal; IsConnected is the
// projection the console renders. The reconciler keeps them equal.
type InboxSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	IsConnected bool   `json:"isConnected"`
	IsLoggedIn  bool   `json:"isLoggedIn"`
	UnreadCount int    `json:"unreadCount"`
	IsPrimary   bool   `json:"isPrimary"`
}

// SessionContext is the process-wide state of one console session.
// Values are treated as immutable once published; use Clone before editing.
type SessionContext struct {
	AccountID        string         `json:"accountId"`
	UserType         UserType       `json:"userType"`
	InboxID          string         `json:"inboxId"`
	InboxName        string         `json:"inboxName"`
	PhoneNumber      string         `json:"phoneNumber"`
	IsConnected      bool           `json:"isConnected"`
	AvailableInboxes []InboxSummary `json:"availableInboxes"`
	WuzapiToken      string         `json:"wuzapiToken,omitempty"`
	Instance         string         `json:"instance,omitempty"`
	Permissions      []string       `json:"permissions"`
}

func (c *SessionContext) Clone() *SessionContext {
	if c == nil {
		return nil
	}
	out := *c
	out.AvailableInboxes = slices.Clone(c.AvailableInboxes)
	out.Permissions = slices.Clone(c.Permissions)
	return &out
}

func (c *SessionContext) InboxIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.AvailableInboxes))
	for _, inbox := range c.AvailableInboxes {
		ids = append(ids, inbox.ID)
	}
	return ids
}

func (c *SessionContext) FindInbox(id string) (InboxSummary, bool) {
	if c == nil {
		return InboxSummary{}, false
	}
	for _, inbox := range c.AvailableInboxes {
		if inbox.ID == id {
			return inbox, true
		}
	}
	return InboxSummary{}, false
}

func (c *SessionContext) HasInbox(id string) bool {
	_, ok := c.FindInbox(id)
	return ok
}
