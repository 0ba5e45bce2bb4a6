package inbox

import "sync"

// Visibility tracks whether the console tab that owns the session is in the
// foreground. The browser reports transitions; the poller watches them.
type Visibility struct {
	mu         sync.Mutex
	foreground bool
	watchers   map[chan bool]struct{}
}

func NewVisibility() *Visibility {
	return &Visibility{
		foreground: true,
		watchers:   make(map[chan bool]struct{}),
	}
}

func (v *Visibility) IsForeground() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.foreground
}

// Set records the current visibility. Watchers only hear about changes.
func (v *Visibility) Set(foreground bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.foreground == foreground {
		return
	}
	v.foreground = foreground

	for ch := range v.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- foreground
	}
}

// Watch returns a channel carrying the latest visibility transition and a
// function that stops the watch.
func (v *Visibility) Watch() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	v.mu.Lock()
	v.watchers[ch] = struct{}{}
	v.mu.Unlock()

	return ch, func() {
		v.mu.Lock()
		delete(v.watchers, ch)
		v.mu.Unlock()
	}
}
