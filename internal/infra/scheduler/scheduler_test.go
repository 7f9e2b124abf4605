package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/task"
)

type stubJob struct {
	key     model.LedgerKey
	run     func(ctx context.Context)
	started chan struct{}
}

func newStub(chat int64, vid string, run func(ctx context.Context)) *stubJob {
	return &stubJob{key: model.DownloadKey(chat, vid), run: run, started: make(chan struct{})}
}

func (j *stubJob) Key() model.LedgerKey { return j.key }
func (j *stubJob) Meta() task.Meta {
	return task.Meta{ID: j.key.String(), ChatID: j.key.ChatID, VideoID: j.key.VideoID}
}
func (j *stubJob) Run(ctx context.Context) model.Result {
	close(j.started)
	if j.run != nil {
		j.run(ctx)
	}
	return model.Succeeded()
}

func newTestScheduler(t *testing.T, max int) *Scheduler {
	t.Helper()
	l := zerolog.Nop()
	s := NewScheduler(max, &l)
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler(t *testing.T) {
	t.Run("should run jobs in enqueue order", func(t *testing.T) {
		s := newTestScheduler(t, 10)
		var mu sync.Mutex
		var order []string
		for _, vid := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
			vid := vid
			if err := s.Enqueue(newStub(1, vid, func(context.Context) {
				mu.Lock()
				order = append(order, vid)
				mu.Unlock()
			})); err != nil {
				t.Fatal(err)
			}
		}
		s.Start(context.Background())
		waitFor(t, func() bool { return s.Len() == 0 })

		mu.Lock()
		defer mu.Unlock()
		if len(order) != 3 || order[0] != "aaaaaaaaaaa" || order[2] != "ccccccccccc" {
			t.Fatalf("order %v", order)
		}
	})

	t.Run("should never run two jobs at once", func(t *testing.T) {
		s := newTestScheduler(t, 10)
		var running, peak int32
		s.Start(context.Background())
		for i := 0; i < 5; i++ {
			vid := string(rune('a'+i)) + "0000000000"
			_ = s.Enqueue(newStub(1, vid, func(context.Context) {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
			}))
		}
		waitFor(t, func() bool { return s.Len() == 0 })
		if p := atomic.LoadInt32(&peak); p != 1 {
			t.Fatalf("peak concurrency %d", p)
		}
	})

	t.Run("should reject a duplicate key while queued or running", func(t *testing.T) {
		s := newTestScheduler(t, 10)
		release := make(chan struct{})
		first := newStub(7, "dQw4w9WgXcQ", func(context.Context) { <-release })
		if err := s.Enqueue(first); err != nil {
			t.Fatal(err)
		}
		if err := s.Enqueue(newStub(7, "dQw4w9WgXcQ", nil)); !errors.Is(err, domain.ErrAlreadyQueued) {
			t.Fatalf("queued duplicate: %v", err)
		}
		s.Start(context.Background())
		<-first.started
		if err := s.Enqueue(newStub(7, "dQw4w9WgXcQ", nil)); !errors.Is(err, domain.ErrAlreadyQueued) {
			t.Fatalf("running duplicate: %v", err)
		}
		if !s.IsActive(model.DownloadKey(7, "dQw4w9WgXcQ")) {
			t.Fatal("expected key to be active")
		}
		// same video in another chat is a different key
		if err := s.Enqueue(newStub(8, "dQw4w9WgXcQ", nil)); err != nil {
			t.Fatalf("other chat: %v", err)
		}

		snap := s.Snapshot()
		if len(snap) != 2 || !snap[0].Running || snap[1].Running {
			t.Fatalf("snapshot %+v", snap)
		}

		close(release)
		waitFor(t, func() bool { return !s.IsActive(model.DownloadKey(7, "dQw4w9WgXcQ")) })
		if err := s.Enqueue(newStub(7, "dQw4w9WgXcQ", nil)); err != nil {
			t.Fatalf("re-enqueue after completion: %v", err)
		}
	})

	t.Run("should allow only one winner under concurrent enqueue", func(t *testing.T) {
		s := newTestScheduler(t, 100)
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.Enqueue(newStub(3, "xxxxxxxxxxx", nil)) == nil {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("wins %d", wins)
		}
	})

	t.Run("should report a full queue", func(t *testing.T) {
		s := newTestScheduler(t, 1)
		_ = s.Enqueue(newStub(1, "aaaaaaaaaaa", nil))
		if err := s.Enqueue(newStub(1, "bbbbbbbbbbb", nil)); !errors.Is(err, domain.ErrQueueFull) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("should keep working after a job panics", func(t *testing.T) {
		s := newTestScheduler(t, 10)
		_ = s.Enqueue(newStub(1, "aaaaaaaaaaa", func(context.Context) { panic("boom") }))
		ran := make(chan struct{})
		_ = s.Enqueue(newStub(1, "bbbbbbbbbbb", func(context.Context) { close(ran) }))
		s.Start(context.Background())
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatal("second job never ran")
		}
	})
}
