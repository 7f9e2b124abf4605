package application

import (
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/infra/scheduler"
)

// ---- small interfaces so the dispatcher can be tested with light fakes ----

// Queue is the scheduler surface the dispatcher drives.
type Queue interface {
	Enqueue(job scheduler.Job) error
	IsActive(key model.LedgerKey) bool
	Snapshot() []scheduler.Entry
}

var _ Queue = (*scheduler.Scheduler)(nil)
