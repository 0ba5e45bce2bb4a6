package inbox

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultPollInterval = 30 * time.Second
	pollTimeout         = 20 * time.Second
)

// PollFunc fetches and reconciles the status of every listed inbox.
type PollFunc func(ctx context.Context, inboxIDs []string) error

type PollerConfig struct {
	Interval time.Duration
	Enabled  bool
}

// Poller periodically refreshes inbox statuses. At most one poll is in flight
// at a time; ticks that find one running, or that fire while the console is
// backgrounded, are skipped.
type Poller struct {
	poll       PollFunc
	visibility *Visibility
	interval   time.Duration
	enabled    bool
	inflight   *semaphore.Weighted

	mu     sync.Mutex
	ids    []string
	reset  chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewPoller(poll PollFunc, visibility *Visibility, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		poll:       poll,
		visibility: visibility,
		interval:   interval,
		enabled:    cfg.Enabled,
		inflight:   semaphore.NewWeighted(1),
		reset:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *Poller) Start() {
	if !p.enabled {
		log.Debug().Msg("status polling disabled")
		return
	}
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run()
		log.Debug().Dur("interval", p.interval).Msg("status poller started")
	})
}

// Stop tears down the timer and the visibility watch and waits for an
// in-flight poll to return.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.cancel()
		p.wg.Wait()
	})
}

// SetInboxes replaces the polled inbox list. A changed, non-empty list
// restarts the timer with an immediate poll.
func (p *Poller) SetInboxes(ids []string) {
	p.mu.Lock()
	if slices.Equal(p.ids, ids) {
		p.mu.Unlock()
		return
	}
	p.ids = slices.Clone(ids)
	p.mu.Unlock()

	select {
	case p.reset <- struct{}{}:
	default:
	}
}

func (p *Poller) inboxIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.ids)
}

func (p *Poller) run() {
	defer p.wg.Done()

	visible, unwatch := p.visibility.Watch()
	defer unwatch()

	var ticker *time.Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-p.done:
			return

		case <-p.reset:
			stopTicker()
			if len(p.inboxIDs()) == 0 {
				continue
			}
			ticker = time.NewTicker(p.interval)
			tick = ticker.C
			p.tick()

		case <-tick:
			p.tick()

		case foreground := <-visible:
			if foreground && tick != nil {
				p.tick()
			}
		}
	}
}

// tick launches one poll unless one is already running or the console is in
// the background. It reports whether a poll was launched.
func (p *Poller) tick() bool {
	if !p.inflight.TryAcquire(1) {
		log.Debug().Msg("status poll already in flight, skipping tick")
		return false
	}
	if !p.visibility.IsForeground() {
		p.inflight.Release(1)
		return false
	}
	ids := p.inboxIDs()
	if len(ids) == 0 {
		p.inflight.Release(1)
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inflight.Release(1)

		ctx, cancel := context.WithTimeout(p.ctx, pollTimeout)
		defer cancel()

		start := time.Now()
		if err := p.poll(ctx, ids); err != nil {
			log.Warn().
				Err(err).
				Int("inboxCount", len(ids)).
				Dur("elapsed", time.Since(start)).
				Msg("status poll failed")
			return
		}
		log.Debug().
			Int("inboxCount", len(ids)).
			Dur("elapsed", time.Since(start)).
			Msg("status poll completed")
	}()
	return true
}
