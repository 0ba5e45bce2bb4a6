package model

import "time"

// Principal is the authenticated caller of the console API.
type Principal struct {
	UserID    string
	SessionID string
	// Token is forwarded to the account backend as the user's bearer token.
	Token     string
	ExpiresAt time.Time
}
