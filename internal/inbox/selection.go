package inbox

import (
	"slices"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

// normalize deduplicates a specific selection and collapses it to "all" when
// it names every available inbox.
func normalize(sel model.InboxSelection, allIDs []string) model.InboxSelection {
	if sel.IsAll() {
		return model.SelectAll()
	}
	ids := dedupe(sel.InboxIDs)
	if len(ids) == 0 {
		return model.SelectAll()
	}
	if len(allIDs) > 0 && coversAll(ids, allIDs) {
		return model.SelectAll()
	}
	return model.SelectSpecific(ids...)
}

// toggle flips id in or out of the selection. A specific selection is never
// left empty: removing its last id keeps it as it was.
func toggle(sel model.InboxSelection, allIDs []string, id string) model.InboxSelection {
	if sel.IsAll() {
		rest := without(allIDs, id)
		if len(rest) == 0 {
			return normalize(model.SelectSpecific(id), allIDs)
		}
		return normalize(model.SelectSpecific(rest...), allIDs)
	}

	if slices.Contains(sel.InboxIDs, id) {
		rest := without(sel.InboxIDs, id)
		if len(rest) == 0 {
			return sel
		}
		return normalize(model.SelectSpecific(rest...), allIDs)
	}

	ids := append(slices.Clone(sel.InboxIDs), id)
	return normalize(model.SelectSpecific(ids...), allIDs)
}

// validateSelection drops persisted ids that are no longer available.
func validateSelection(sel model.InboxSelection, allIDs []string) model.InboxSelection {
	if sel.IsAll() {
		return model.SelectAll()
	}
	kept := make([]string, 0, len(sel.InboxIDs))
	for _, id := range sel.InboxIDs {
		if slices.Contains(allIDs, id) {
			kept = append(kept, id)
		}
	}
	return normalize(model.SelectSpecific(kept...), allIDs)
}

func coversAll(ids, allIDs []string) bool {
	if len(ids) != len(dedupe(allIDs)) {
		return false
	}
	for _, id := range allIDs {
		if !slices.Contains(ids, id) {
			return false
		}
	}
	return true
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
