package inbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

const (
	PermissionSendMessages = "send_messages"

	persistTimeout = 10 * time.Second
	notifyTimeout  = 5 * time.Second
	refreshTimeout = 20 * time.Second
)

type Deps struct {
	Backend    Backend
	Selections SelectionStore
	Provider   StatusProvider
	Notifier   Notifier
}

type Config struct {
	PollInterval time.Duration
	PollEnabled  bool
}

// Session is the facade of one console session: it owns the store, the
// poller and the selection persistence worker.
type Session struct {
	id         string
	store      *Store
	loader     *Loader
	backend    Backend
	selections SelectionStore
	provider   StatusProvider
	notifier   Notifier
	visibility *Visibility
	poller     *Poller

	refreshGroup singleflight.Group
	persistCh    chan struct{}
	done         chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	closeOnce    sync.Once
	unsubscribe  func()
	lastActivity atomic.Int64
}

func NewSession(id string, deps Deps, cfg Config) *Session {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}

	s := &Session{
		id:         id,
		store:      NewStore(State{Selection: model.SelectAll()}),
		loader:     NewLoader(deps.Backend, deps.Selections),
		backend:    deps.Backend,
		selections: deps.Selections,
		provider:   deps.Provider,
		notifier:   notifier,
		visibility: NewVisibility(),
		persistCh:  make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	s.poller = NewPoller(s.pollStatuses, s.visibility, PollerConfig{
		Interval: cfg.PollInterval,
		Enabled:  cfg.PollEnabled,
	})
	s.touch()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Start wires the poller to the inbox list, starts background work and runs
// the initial load.
func (s *Session) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.unsubscribe = s.store.Subscribe(func(st State) {
			s.poller.SetInboxes(st.Context.InboxIDs())
		})
		s.wg.Add(1)
		go s.persistLoop()
		s.poller.Start()
	})
	return s.Load(ctx)
}

// Close ends the session: background work stops and the context becomes
// null. Results of calls still in flight are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.poller.Stop()
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.store.Update(func(st State) State {
			return State{
				Selection: model.SelectAll(),
				Epoch:     st.Epoch + 1,
				closed:    true,
			}
		})
		s.wg.Wait()
		log.Debug().Str("sessionId", s.id).Msg("inbox session closed")
	})
}

func (s *Session) Subscribe(l Listener) func() {
	return s.store.Subscribe(l)
}

func (s *Session) GetState() State {
	return s.store.GetState()
}

func (s *Session) Snapshot() View {
	return NewView(s.store.GetState())
}

func (s *Session) Visibility() *Visibility {
	return s.visibility
}

// LastActivity is the time of the last facade call.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Touch marks the session as in use without calling the facade.
func (s *Session) Touch() {
	s.touch()
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Load (re)runs the session context loader. Expected-empty outcomes are not
// errors; any other failure is returned after being recorded in the state.
func (s *Session) Load(ctx context.Context) error {
	s.touch()

	started := s.store.Update(func(st State) State {
		if st.closed {
			return st
		}
		st.IsLoading = true
		st.Epoch++
		return st
	})
	if started.closed {
		return apperrors.NoSession()
	}
	epoch := started.Epoch

	res := s.loader.Load(ctx)

	s.store.Update(func(st State) State {
		if st.closed || st.Epoch != epoch {
			return st
		}
		return State{
			Context:   res.context,
			Selection: res.selection,
			Error:     res.err,
			Epoch:     epoch + 1,
		}
	})

	if res.err != nil && res.err.Critical {
		log.Error().Err(res.cause).Str("sessionId", s.id).Msg("failed to load inbox context")
		return fmt.Errorf("load inbox context: %w", res.cause)
	}
	if res.err != nil {
		log.Info().Str("sessionId", s.id).Str("code", res.err.Code).Msg("inbox context empty")
	}
	return nil
}

// Selection mutators

func (s *Session) SelectAll() error {
	return s.mutateSelection(func(st State) (model.InboxSelection, error) {
		return model.SelectAll(), nil
	})
}

func (s *Session) SelectSingle(inboxID string) error {
	return s.mutateSelection(func(st State) (model.InboxSelection, error) {
		if !st.Context.HasInbox(inboxID) {
			return st.Selection, apperrors.NotFound("Inbox")
		}
		return normalize(model.SelectSpecific(inboxID), st.Context.InboxIDs()), nil
	})
}

func (s *Session) ToggleInbox(inboxID string) error {
	return s.mutateSelection(func(st State) (model.InboxSelection, error) {
		if !st.Context.HasInbox(inboxID) {
			return st.Selection, apperrors.NotFound("Inbox")
		}
		return toggle(st.Selection, st.Context.InboxIDs(), inboxID), nil
	})
}

func (s *Session) IsInboxSelected(inboxID string) bool {
	return s.store.GetState().Selection.Contains(inboxID)
}

func (s *Session) GetSelectedCount() int {
	st := s.store.GetState()
	return len(SelectedInboxIDs(st.Selection, availableInboxes(st)))
}

// mutateSelection applies fn against the latest state, re-projects the
// displayed status and schedules persistence.
func (s *Session) mutateSelection(fn func(State) (model.InboxSelection, error)) error {
	s.touch()

	var err error
	changed := false
	s.store.Update(func(st State) State {
		if st.closed || st.Context == nil {
			err = apperrors.NoSession()
			return st
		}
		sel, fnErr := fn(st)
		if fnErr != nil {
			err = fnErr
			return st
		}
		next := st
		next.Selection = sel
		next.Context = project(st.Context, sel)
		changed = !sel.Equal(st.Selection) || next.Context != st.Context
		return next
	})
	if err != nil {
		return err
	}
	if changed {
		s.schedulePersist()
	}
	return nil
}

func (s *Session) schedulePersist() {
	select {
	case s.persistCh <- struct{}{}:
	default:
	}
}

// persistLoop writes the latest selection. Requests coalesce, so the last
// write always carries the last applied selection.
func (s *Session) persistLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.persistCh:
			st := s.store.GetState()
			if st.closed || st.Context == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			if err := s.selections.SaveSelection(ctx, st.Selection); err != nil {
				log.Warn().
					Err(err).
					Str("sessionId", s.id).
					Str("selection", string(st.Selection.Type)).
					Msg("failed to persist inbox selection")
			}
			cancel()
		}
	}
}

// Context mutators

func (s *Session) SwitchInbox(ctx context.Context, inboxID string) error {
	s.touch()

	if inboxID == "" {
		return apperrors.MissingRequired("inboxId")
	}

	sessionCtx, err := s.backend.SwitchInbox(ctx, inboxID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", s.id).Str("inboxId", inboxID).Msg("failed to switch inbox")
		s.notify(model.Notification{
			Type:    model.NotificationSwitchFailed,
			Level:   model.NotificationLevelError,
			InboxID: inboxID,
			Message: "Failed to switch inbox",
			At:      time.Now(),
		})
		return fmt.Errorf("switch inbox: %w", err)
	}

	s.replaceContext(sessionCtx)
	return nil
}

func (s *Session) RefreshContext(ctx context.Context) error {
	s.touch()

	sessionCtx, err := s.backend.RefreshInboxContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("sessionId", s.id).Msg("failed to refresh inbox context")
		return fmt.Errorf("refresh inbox context: %w", err)
	}

	s.replaceContext(sessionCtx)
	return nil
}

func (s *Session) replaceContext(sessionCtx *model.SessionContext) {
	if sessionCtx == nil {
		return
	}
	s.store.Update(func(st State) State {
		if st.closed {
			return st
		}
		sel := validateSelection(st.Selection, sessionCtx.InboxIDs())
		next := st
		next.Context = project(sessionCtx.Clone(), sel)
		next.Selection = sel
		next.Error = nil
		next.Epoch++
		if st.active.inboxID != sessionCtx.InboxID {
			next.active = activeStatus{}
		}
		return next
	})
}

// Status reconciliation entry points

func (s *Session) UpdateInboxStatus(inboxID string, isLoggedIn bool) {
	s.touch()

	epoch := s.store.GetState().Epoch
	s.applyResults(epoch, []model.StatusResult{{
		InboxID:    inboxID,
		Success:    true,
		IsLoggedIn: isLoggedIn,
	}})
}

// RefreshInboxStatus queries the provider for one inbox right away.
// Concurrent refreshes of the same inbox share one provider call, which is
// not cancelled with the request that started it.
func (s *Session) RefreshInboxStatus(ctx context.Context, inboxID string) (model.StatusResult, error) {
	s.touch()

	v, err, _ := s.refreshGroup.Do(inboxID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		epoch := s.store.GetState().Epoch
		result, err := s.provider.InboxStatus(flightCtx, inboxID)
		if err != nil {
			return nil, err
		}
		result.InboxID = inboxID
		s.applyResults(epoch, []model.StatusResult{result})
		return result, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("sessionId", s.id).Str("inboxId", inboxID).Msg("failed to refresh inbox status")
		return model.StatusResult{}, fmt.Errorf("refresh inbox status: %w", err)
	}
	return v.(model.StatusResult), nil
}

// PollNow runs one batch status poll of every available inbox outside the
// poller's schedule.
func (s *Session) PollNow(ctx context.Context) error {
	s.touch()

	ids := s.store.GetState().Context.InboxIDs()
	if len(ids) == 0 {
		return nil
	}
	return s.pollStatuses(ctx, ids)
}

func (s *Session) pollStatuses(ctx context.Context, inboxIDs []string) error {
	epoch := s.store.GetState().Epoch
	results, err := s.provider.BatchStatus(ctx, inboxIDs)
	if err != nil {
		return fmt.Errorf("batch status: %w", err)
	}
	s.applyResults(epoch, results)
	return nil
}

func (s *Session) applyResults(epoch uint64, results []model.StatusResult) {
	var notifications []model.Notification
	s.store.Update(func(st State) State {
		if st.closed || st.Context == nil || st.Epoch != epoch {
			return st
		}
		next, n := reconcile(st, results, time.Now())
		notifications = n
		return next
	})
	for _, n := range notifications {
		s.notify(n)
	}
}

func (s *Session) notify(n model.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	s.notifier.Notify(ctx, n)
}

// Permission predicates

func (s *Session) HasPermission(permission string) bool {
	return hasPermission(s.store.GetState().Context, permission)
}

func (s *Session) CanSendMessages() bool {
	return s.HasPermission(PermissionSendMessages)
}

func hasPermission(ctx *model.SessionContext, permission string) bool {
	if ctx == nil {
		return false
	}
	if ctx.UserType == model.UserTypeOwner {
		return true
	}
	return slices.Contains(ctx.Permissions, permission)
}

func availableInboxes(st State) []model.InboxSummary {
	if st.Context == nil {
		return nil
	}
	return st.Context.AvailableInboxes
}
