package sse

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

const publishTimeout = 5 * time.Second

type Publisher interface {
	Publish(ctx context.Context, sessionID string, event Event) error
}

// SessionPublisher streams one session's state snapshots and notifications.
// Snapshots coalesce: a slow stream only ever receives the latest view.
type SessionPublisher struct {
	broker    Publisher
	sessionID string

	mu      sync.Mutex
	pending *inbox.View
	signal  chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	stopped sync.Once
}

var _ inbox.Notifier = (*SessionPublisher)(nil)

func NewSessionPublisher(broker Publisher, sessionID string) *SessionPublisher {
	p := &SessionPublisher{
		broker:    broker,
		sessionID: sessionID,
		signal:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *SessionPublisher) Notify(ctx context.Context, n model.Notification) {
	p.publish(ctx, EventNotification, n)
}

// OnState is an inbox.Listener.
func (p *SessionPublisher) OnState(st inbox.State) {
	view := inbox.NewView(st)
	p.mu.Lock()
	p.pending = &view
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// SignedOut tells open streams the session is gone and stops the publisher.
func (p *SessionPublisher) SignedOut() {
	p.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	p.publish(ctx, EventSignedOut, map[string]string{"sessionId": p.sessionID})
}

func (p *SessionPublisher) Stop() {
	p.stopped.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *SessionPublisher) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case <-p.signal:
			p.mu.Lock()
			view := p.pending
			p.pending = nil
			p.mu.Unlock()
			if view == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			p.publish(ctx, EventState, view)
			cancel()
		}
	}
}

func (p *SessionPublisher) publish(ctx context.Context, eventType string, data any) {
	event, err := NewEvent(eventType, data)
	if err != nil {
		log.Error().Err(err).Str("sessionId", p.sessionID).Msg("failed to encode event")
		return
	}
	if err := p.broker.Publish(ctx, p.sessionID, event); err != nil {
		log.Warn().
			Err(err).
			Str("sessionId", p.sessionID).
			Str("event", eventType).
			Msg("failed to publish event")
	}
}
