package model

import (
	"slices"
	"time"
)

// InboxSelection is either every available inbox or a non-empty ordered
// subset of inbox ids. The zero value is the "all" selection.
type InboxSelection struct {
	Type     SelectionType `json:"type"`
	InboxIDs []string      `json:"inboxIds,omitempty"`
}

func SelectAll() InboxSelection {
	return InboxSelection{Type: SelectionTypeAll}
}

func SelectSpecific(ids ...string) InboxSelection {
	return InboxSelection{Type: SelectionTypeSpecific, InboxIDs: slices.Clone(ids)}
}

func (s InboxSelection) IsAll() bool {
	return s.Type != SelectionTypeSpecific
}

func (s InboxSelection) Contains(id string) bool {
	return s.IsAll() || slices.Contains(s.InboxIDs, id)
}

func (s InboxSelection) Equal(other InboxSelection) bool {
	if s.IsAll() || other.IsAll() {
		return s.IsAll() == other.IsAll()
	}
	return slices.Equal(s.InboxIDs, other.InboxIDs)
}

// StoredSelection is a selection persisted on behalf of a user.
type StoredSelection struct {
	UserID    string         `json:"userId"`
	Selection InboxSelection `json:"selection"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
