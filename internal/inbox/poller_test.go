package inbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingPoll struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	mu      sync.Mutex
	ids     [][]string
}

func newBlockingPoll() *blockingPoll {
	return &blockingPoll{release: make(chan struct{})}
}

func (b *blockingPoll) poll(ctx context.Context, ids []string) error {
	b.calls.Add(1)
	b.mu.Lock()
	b.ids = append(b.ids, ids)
	b.mu.Unlock()
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return b.err
}

func TestPollerSingleFlight(t *testing.T) {
	bp := newBlockingPoll()
	p := NewPoller(bp.poll, NewVisibility(), PollerConfig{Interval: time.Hour, Enabled: true})
	p.SetInboxes([]string{"a", "b"})

	assert.True(t, p.tick())
	assert.Eventually(t, func() bool { return bp.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.False(t, p.tick(), "second tick must be skipped while a poll is in flight")
	assert.Equal(t, int32(1), bp.calls.Load())

	bp.release <- struct{}{}

	assert.Eventually(t, func() bool { return p.tick() }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return bp.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	close(bp.release)
	p.Stop()
}

func TestPollerFailureReleasesGuard(t *testing.T) {
	bp := newBlockingPoll()
	bp.err = errors.New("provider unavailable")
	close(bp.release)

	p := NewPoller(bp.poll, NewVisibility(), PollerConfig{Interval: time.Hour, Enabled: true})
	p.SetInboxes([]string{"a"})

	assert.True(t, p.tick())
	assert.Eventually(t, func() bool { return p.tick() }, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestPollerSkipsWhenBackgrounded(t *testing.T) {
	bp := newBlockingPoll()
	close(bp.release)
	visibility := NewVisibility()
	visibility.Set(false)

	p := NewPoller(bp.poll, visibility, PollerConfig{Interval: time.Hour, Enabled: true})
	p.SetInboxes([]string{"a"})

	assert.False(t, p.tick())
	assert.Zero(t, bp.calls.Load())

	visibility.Set(true)
	assert.True(t, p.tick())
	p.Stop()
}

func TestPollerSkipsWithoutInboxes(t *testing.T) {
	bp := newBlockingPoll()
	p := NewPoller(bp.poll, NewVisibility(), PollerConfig{Interval: time.Hour, Enabled: true})

	assert.False(t, p.tick())
	assert.Zero(t, bp.calls.Load())
	p.Stop()
}

func TestPollerRun(t *testing.T) {
	t.Run("polls immediately when the inbox list becomes non-empty", func(t *testing.T) {
		bp := newBlockingPoll()
		close(bp.release)
		p := NewPoller(bp.poll, NewVisibility(), PollerConfig{Interval: time.Hour, Enabled: true})
		p.Start()
		defer p.Stop()

		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, bp.calls.Load())

		p.SetInboxes([]string{"a", "b"})
		assert.Eventually(t, func() bool { return bp.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		bp.mu.Lock()
		assert.Equal(t, []string{"a", "b"}, bp.ids[0])
		bp.mu.Unlock()
	})

	t.Run("polls on every interval", func(t *testing.T) {
		bp := newBlockingPoll()
		close(bp.release)
		p := NewPoller(bp.poll, NewVisibility(), PollerConfig{Interval: 20 * time.Millisecond, Enabled: true})
		p.Start()
		defer p.Stop()

		p.SetInboxes([]string{"a"})
		assert.Eventually(t, func() bool { return bp.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	})

	t.Run("polls right away when returning to the foreground", func(t *testing.T) {
		bp := newBlockingPoll()
		close(bp.release)
		visibility := NewVisibility()
		p := NewPoller(bp.poll, visibility, PollerConfig{Interval: time.Hour, Enabled: true})
		p.Start()
		defer p.Stop()

		p.SetInboxes([]string{"a"})
		assert.Eventually(t, func() bool { return bp.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		visibility.Set(false)
		visibility.Set(true)
		assert.Eventually(t, func() bool { return bp.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("disabled poller never polls", func(t *testing.T) {
		bp := newBlockingPoll()
		close(bp.release)
		p := NewPoller(bp.poll, NewVisibility(), PollerConfig{Interval: 10 * time.Millisecond, Enabled: false})
		p.Start()
		p.SetInboxes([]string{"a"})

		time.Sleep(50 * time.Millisecond)
		p.Stop()
		assert.Zero(t, bp.calls.Load())
	})

	t.Run("stop cancels an in-flight poll", func(t *testing.T) {
		bp := newBlockingPoll()
		p := NewPoller(bp.poll, NewVisibility(), PollerConfig{Interval: time.Hour, Enabled: true})
		p.Start()

		p.SetInboxes([]string{"a"})
		assert.Eventually(t, func() bool { return bp.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		stopped := make(chan struct{})
		go func() {
			p.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
	})
}
