package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/infra/metrics"
	"telegram-yt-relay/internal/task"
)

// Job is the part of a task the scheduler needs. Every task.Task satisfies it.
type Job interface {
	Key() model.LedgerKey
	Meta() task.Meta
	Run(ctx context.Context) model.Result
}

// Entry is one row of a queue snapshot.
type Entry struct {
	Meta    task.Meta
	Running bool
}

// Scheduler runs jobs one at a time in enqueue order. It owns the running-set:
// a job is active from a successful Enqueue until its Run returns.
type Scheduler struct {
	max int
	log *zerolog.Logger

	mu      sync.Mutex
	pending []Job
	current Job
	active  map[model.LedgerKey]struct{}
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler builds a scheduler holding at most maxQueued waiting jobs.
// If maxQueued <= 0 it defaults to 100.
func NewScheduler(maxQueued int, logger *zerolog.Logger) *Scheduler {
	if maxQueued <= 0 {
		maxQueued = 100
	}
	l := logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		max:    maxQueued,
		log:    &l,
		active: make(map[model.LedgerKey]struct{}),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends job to the queue. The dedup check and the insert happen
// under one lock, so two concurrent requests for the same key cannot both win.
func (s *Scheduler) Enqueue(job Job) error {
	key := job.Key()
	s.mu.Lock()
	if _, ok := s.active[key]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrAlreadyQueued, key)
	}
	if len(s.pending) >= s.max {
		s.mu.Unlock()
		return domain.ErrQueueFull
	}
	s.pending = append(s.pending, job)
	s.active[key] = struct{}{}
	depth := s.depthLocked()
	s.mu.Unlock()

	metrics.SetQueueDepth(depth)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// IsActive reports whether a job for key is queued or running.
func (s *Scheduler) IsActive(key model.LedgerKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key]
	return ok
}

// Snapshot lists the running job first, then queued jobs in order.
func (s *Scheduler) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.pending)+1)
	if s.current != nil {
		out = append(out, Entry{Meta: s.current.Meta(), Running: true})
	}
	for _, j := range s.pending {
		out = append(out, Entry{Meta: j.Meta()})
	}
	return out
}

// Len is the number of queued plus running jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depthLocked()
}

func (s *Scheduler) depthLocked() int {
	n := len(s.pending)
	if s.current != nil {
		n++
	}
	return n
}

// Start launches the single worker. Calling Start twice has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(parentCtx)
	go s.loop(s.ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	s.log.Info().Int("max_queued", s.max).Msg("worker started")
	for {
		for {
			if ctx.Err() != nil {
				break
			}
			job := s.next()
			if job == nil {
				break
			}
			s.runOne(ctx, job)
		}
		select {
		case <-ctx.Done():
			s.log.Info().Int("dropped", s.Len()).Msg("worker stopping")
			return
		case <-s.wake:
		}
	}
}

func (s *Scheduler) next() Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	job := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.current = job
	return job
}

// runOne awaits the full run, cleanup included, before releasing the key.
func (s *Scheduler) runOne(ctx context.Context, job Job) {
	key := job.Key()
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("key", key.String()).Msg("job panicked")
		}
		s.mu.Lock()
		delete(s.active, key)
		s.current = nil
		depth := s.depthLocked()
		s.mu.Unlock()
		metrics.SetQueueDepth(depth)
	}()

	meta := job.Meta()
	s.log.Debug().Str("task_id", meta.ID).Str("key", key.String()).Msg("dequeued")
	res := job.Run(ctx)
	s.log.Debug().Str("task_id", meta.ID).Str("outcome", string(res.Outcome)).Msg("job done")
}

// Stop cancels the worker and waits for it to exit. Queued jobs are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.done
	s.log.Info().Msg("stopped")
}
