package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

type SessionReaper interface {
	ReapIdle(ctx context.Context) (int64, error)
}

type StaleSelectionStore interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob periodically closes idle inbox sessions and, when selections
// are stored locally, forgets selections nobody has touched in a long time.
type CleanupJob struct {
	sessions        SessionReaper
	selections      StaleSelectionStore
	selectionMaxAge time.Duration
	interval        time.Duration
	done            chan struct{}
	stopped         chan struct{}
}

// NewCleanupJob builds the job. selections may be nil.
func NewCleanupJob(
	sessions SessionReaper,
	selections StaleSelectionStore,
	selectionMaxAge time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessions:        sessions,
		selections:      selections,
		selectionMaxAge: selectionMaxAge,
		interval:        interval,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	j.runCleanup(ctx, "idle inbox sessions", j.sessions.ReapIdle)
	if j.selections != nil {
		j.runCleanup(ctx, "stale inbox selections", func(ctx context.Context) (int64, error) {
			return j.selections.DeleteStale(ctx, time.Now().Add(-j.selectionMaxAge))
		})
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
