package inbox

import (
	"sync"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

// State is one immutable snapshot of a console session. Mutations replace
// the whole value; the Context pointer is never edited after publication.
type State struct {
	Context   *model.SessionContext
	Selection model.InboxSelection
	IsLoading bool
	Error     *model.LoadError
	// Epoch changes whenever the context is replaced wholesale (load,
	// switch, refresh, sign-out). Async results tagged with an older epoch
	// are discarded.
	Epoch uint64

	active activeStatus
	closed bool
}

// activeStatus is the last status observed for the backend's active inbox.
// known=false is the "null" previous value that suppresses notifications.
type activeStatus struct {
	inboxID  string
	known    bool
	loggedIn bool
}

func (s State) same(o State) bool {
	return s.Context == o.Context &&
		s.Selection.Equal(o.Selection) &&
		s.IsLoading == o.IsLoading &&
		s.Error == o.Error &&
		s.Epoch == o.Epoch &&
		s.active == o.active &&
		s.closed == o.closed
}

type Listener func(State)

// Store is the authoritative holder of a session's State. Update applies a
// reducer atomically against the latest state; listeners observe states in
// the order they were produced.
type Store struct {
	emitMu    sync.Mutex
	mu        sync.RWMutex
	state     State
	listeners map[uint64]Listener
	nextID    uint64
}

func NewStore(initial State) *Store {
	return &Store{
		state:     initial,
		listeners: make(map[uint64]Listener),
	}
}

func (s *Store) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers l and returns a function that removes it. Listeners
// run synchronously after each change and must not call Update.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Update replaces the state with fn(current) and returns the result.
func (s *Store) Update(fn func(State) State) State {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := fn(prev)
	if next.same(prev) {
		s.mu.Unlock()
		return prev
	}
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}
