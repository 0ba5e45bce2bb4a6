package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/inbox-sync-go/internal/audit"
	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/model"
	"github.com/openclaw/inbox-sync-go/internal/sse"
)

const startTimeout = 30 * time.Second

// DepsFunc builds the collaborators of a new session for the given caller.
type DepsFunc func(p model.Principal) inbox.Deps

// TokenSetter is implemented by collaborators that call out with the user's
// bearer token. They receive the caller's current token on every request.
type TokenSetter interface {
	SetToken(token string)
}

type Config struct {
	Session inbox.Config
	IdleTTL time.Duration
}

type entry struct {
	session   *inbox.Session
	publisher *sse.SessionPublisher
	userID    string
	tokens    []TokenSetter
	ready     chan struct{}
}

func (e *entry) setToken(token string) {
	if token == "" {
		return
	}
	for _, ts := range e.tokens {
		ts.SetToken(token)
	}
}

// Manager owns the inbox sessions of every signed-in console user.
type Manager struct {
	newDeps DepsFunc
	events  sse.Publisher
	cfg     Config

	mu       sync.Mutex
	sessions map[string]*entry
	// signedOut holds signed-out session ids until their token expires, so a
	// still-valid token cannot bring the session back.
	signedOut map[string]time.Time
	closed    bool
}

func NewManager(newDeps DepsFunc, events sse.Publisher, cfg Config) *Manager {
	return &Manager{
		newDeps:  newDeps,
		events:   events,
		cfg:      cfg,
		sessions:  make(map[string]*entry),
		signedOut: make(map[string]time.Time),
	}
}

// Get returns the caller's session, creating and loading it on first use.
// A failed initial load still yields the session; its state carries the
// error and Load can be retried.
func (m *Manager) Get(ctx context.Context, p model.Principal) (*inbox.Session, error) {
	if p.SessionID == "" || p.UserID == "" {
		return nil, apperrors.Unauthorized("Missing session identity")
	}

	m.mu.Lock()
	if m.closed || m.isSignedOut(p.SessionID) {
		m.mu.Unlock()
		return nil, apperrors.NoSession()
	}
	e, ok := m.sessions[p.SessionID]
	if ok {
		m.mu.Unlock()
		if e.userID != p.UserID {
			return nil, apperrors.Unauthorized("Session belongs to another user")
		}
		e.setToken(p.Token)
		select {
		case <-e.ready:
			return e.session, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e = m.newEntry(p)
	m.sessions[p.SessionID] = e
	m.mu.Unlock()

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionStart,
		UserID:    p.UserID,
		SessionID: p.SessionID,
	})

	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), startTimeout)
	defer cancel()
	if err := e.session.Start(startCtx); err != nil {
		log.Warn().Err(err).Str("sessionId", p.SessionID).Msg("inbox session started without context")
	}
	close(e.ready)

	return e.session, nil
}

func (m *Manager) newEntry(p model.Principal) *entry {
	publisher := sse.NewSessionPublisher(m.events, p.SessionID)

	deps := m.newDeps(p)
	deps.Notifier = publisher

	var tokens []TokenSetter
	for _, dep := range []any{deps.Backend, deps.Selections} {
		if ts, ok := dep.(TokenSetter); ok {
			tokens = append(tokens, ts)
		}
	}

	s := inbox.NewSession(p.SessionID, deps, m.cfg.Session)
	s.Subscribe(publisher.OnState)

	return &entry{
		session:   s,
		publisher: publisher,
		userID:    p.UserID,
		tokens:    tokens,
		ready:     make(chan struct{}),
	}
}

// isSignedOut reports whether sessionID was signed out and its token has not
// expired yet. Callers hold m.mu.
func (m *Manager) isSignedOut(sessionID string) bool {
	until, ok := m.signedOut[sessionID]
	return ok && time.Now().Before(until)
}

// Lookup returns the caller's started session without creating one.
func (m *Manager) Lookup(p model.Principal) (*inbox.Session, bool) {
	m.mu.Lock()
	e, ok := m.sessions[p.SessionID]
	m.mu.Unlock()
	if !ok || e.userID != p.UserID {
		return nil, false
	}
	select {
	case <-e.ready:
		e.setToken(p.Token)
		return e.session, true
	default:
		return nil, false
	}
}

// SignOut tears the session down and refuses to recreate it while the
// caller's token is valid. Open event streams receive a signed_out event.
func (m *Manager) SignOut(ctx context.Context, p model.Principal) bool {
	sessionID := p.SessionID
	until := p.ExpiresAt
	if until.IsZero() {
		until = time.Now().Add(m.cfg.IdleTTL)
	}

	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if ok && e.userID != p.UserID {
		m.mu.Unlock()
		return false
	}
	m.signedOut[sessionID] = until
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	m.teardown(e)
	audit.Log(ctx, audit.Event{
		Type:      audit.EventSignOut,
		UserID:    e.userID,
		SessionID: sessionID,
	})
	return true
}

func (m *Manager) teardown(e *entry) {
	<-e.ready
	e.session.Close()
	e.publisher.SignedOut()
}

// ReapIdle closes sessions with no activity within the idle TTL and forgets
// sign-outs whose token has expired.
func (m *Manager) ReapIdle(ctx context.Context) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-m.cfg.IdleTTL)

	var idle []*entry
	m.mu.Lock()
	for id, until := range m.signedOut {
		if !now.Before(until) {
			delete(m.signedOut, id)
		}
	}
	for id, e := range m.sessions {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.session.LastActivity().Before(cutoff) {
			idle = append(idle, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		m.teardown(e)
		audit.Log(ctx, audit.Event{
			Type:      audit.EventSessionReap,
			UserID:    e.userID,
			SessionID: e.session.ID(),
			Details:   map[string]interface{}{"idleFor": time.Since(e.session.LastActivity())},
		})
	}
	return int64(len(idle)), nil
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close signs out every session and refuses new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		all = append(all, e)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range all {
		m.teardown(e)
	}
	log.Info().Int("count", len(all)).Msg("inbox sessions closed")
}
