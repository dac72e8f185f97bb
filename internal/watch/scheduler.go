package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/blamekit/internal/blame"
	"github.com/dshills/blamekit/internal/engine/buffer"
	"github.com/dshills/blamekit/internal/git"
)

// ErrSchedulerClosed is returned when requesting work on a closed
// scheduler.
var ErrSchedulerClosed = errors.New("watch: scheduler closed")

// DefaultSettle is the delay between the last rebuild request and the
// rebuild itself.
const DefaultSettle = 250 * time.Millisecond

// Scheduler rebuilds one buffer's blame index on demand. Requests made
// while the settle timer runs are coalesced into a single rebuild, and
// a rebuild requested while an earlier one is still running cancels it.
type Scheduler struct {
	index *blame.BufferBlame
	repo  git.Repository
	path  string
	buf   *buffer.Buffer

	settle time.Duration
	log    zerolog.Logger
	onDone func(jobID string, err error)

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSettle overrides the settle delay.
func WithSettle(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.settle = d
		}
	}
}

// WithSchedulerLogger attaches a logger.
func WithSchedulerLogger(log zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithOnDone registers a callback invoked after every rebuild attempt,
// including cancelled ones. It runs on the rebuild goroutine.
func WithOnDone(fn func(jobID string, err error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onDone = fn
	}
}

// NewScheduler creates a scheduler for one buffer, path and repository.
func NewScheduler(index *blame.BufferBlame, repo git.Repository, path string, buf *buffer.Buffer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		index:  index,
		repo:   repo,
		path:   path,
		buf:    buf,
		settle: DefaultSettle,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request schedules a rebuild after the settle delay. Calling it again
// before the delay expires restarts the delay.
func (s *Scheduler) Request() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.settle, s.fire)
	return nil
}

// Flush runs any pending rebuild immediately instead of waiting out the
// settle delay.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	if s.closed || s.timer == nil || !s.timer.Stop() {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.fire()
}

// fire starts a rebuild goroutine, cancelling any rebuild still in
// flight.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	jobID := uuid.NewString()

	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, cancel, jobID)
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, jobID string) {
	defer s.wg.Done()
	defer cancel()

	start := time.Now()
	err := s.index.Update(ctx, s.repo, s.path, s.buf)
	switch {
	case err == nil:
		s.log.Debug().Str("job", jobID).Str("path", s.path).
			Dur("elapsed", time.Since(start)).Msg("blame rebuilt")
	case errors.Is(err, context.Canceled):
		s.log.Debug().Str("job", jobID).Str("path", s.path).Msg("blame rebuild superseded")
	default:
		s.log.Error().Err(err).Str("job", jobID).Str("path", s.path).Msg("blame rebuild failed")
	}

	if s.onDone != nil {
		s.onDone(jobID, err)
	}
}

// Close cancels pending and in-flight work and waits for it to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
