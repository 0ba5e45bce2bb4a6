package inbox

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

type loadResult struct {
	context   *model.SessionContext
	selection model.InboxSelection
	err       *model.LoadError
	cause     error
}

// Loader fetches the session context and the persisted selection and
// reconciles them into a starting state.
type Loader struct {
	backend    Backend
	selections SelectionStore
}

func NewLoader(backend Backend, selections SelectionStore) *Loader {
	return &Loader{
		backend:    backend,
		selections: selections,
	}
}

func (l *Loader) Load(ctx context.Context) loadResult {
	sessionCtx, err := l.backend.GetInboxContext(ctx)
	if err != nil {
		return loadResult{
			selection: model.SelectAll(),
			err:       loadErrorFrom(err),
			cause:     err,
		}
	}
	if sessionCtx == nil {
		return loadResult{
			selection: model.SelectAll(),
			err:       loadErrorFrom(apperrors.NoAccount()),
		}
	}

	selection, err := l.selections.GetSelection(ctx)
	if err != nil {
		log.Warn().Err(err).Str("accountId", sessionCtx.AccountID).Msg("failed to load inbox selection, defaulting to all")
		selection = model.SelectAll()
	}

	selection = validateSelection(selection, sessionCtx.InboxIDs())
	return loadResult{
		context:   project(sessionCtx.Clone(), selection),
		selection: selection,
	}
}

func loadErrorFrom(err error) *model.LoadError {
	if apperrors.IsExpectedEmpty(err) {
		appErr, _ := apperrors.AsAppError(err)
		return &model.LoadError{
			Code:    string(appErr.Code),
			Message: appErr.Message,
		}
	}
	return &model.LoadError{
		Code:     string(apperrors.GetCode(err)),
		Message:  "Failed to load inbox context",
		Critical: true,
	}
}
