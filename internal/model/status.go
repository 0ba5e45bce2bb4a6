package model

import "time"

// StatusResult is one per-inbox answer from the status provider.
type StatusResult struct {
	InboxID    string `json:"inboxId"`
	Success    bool   `json:"success"`
	IsLoggedIn bool   `json:"isLoggedIn"`
}

type Notification struct {
	Type    NotificationType  `json:"type"`
	Level   NotificationLevel `json:"level"`
	InboxID string            `json:"inboxId,omitempty"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
}

// LoadError is what the loader retains when the session context could not be
// published. Non-critical errors are expected-empty states (no account, no
// inbox) that the console renders as an empty state instead of a banner.
type LoadError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Critical bool   `json:"critical"`
}
