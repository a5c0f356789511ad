package cron

import "sync"

// Status reports where a scheduled job is in its lifecycle.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
	StatusStopped   Status = "stopped"
)

// Handle controls a scheduled job.
type Handle interface {
	Cancel()
	Status() Status
	Err() error
	Runs() int
	Done() <-chan struct{}
}

type jobHandle struct {
	scheduler *Scheduler
	id        int64
	entryID   int
	done      chan struct{}

	mu     sync.RWMutex
	status Status
	err    error
	runs   int
	once   sync.Once
}

func (h *jobHandle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.scheduler != nil {
			h.scheduler.remove(h.id)
		}
		h.finish(StatusCanceled)
	})
}

func (h *jobHandle) Status() Status {
	if h == nil {
		return StatusStopped
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *jobHandle) Err() error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *jobHandle) Runs() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.runs
}

func (h *jobHandle) Done() <-chan struct{} {
	if h == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return h.done
}

func (h *jobHandle) terminal() bool {
	switch h.Status() {
	case StatusCanceled, StatusStopped:
		return true
	}
	return false
}

func (h *jobHandle) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusCanceled || h.status == StatusStopped {
		return false
	}
	h.status = StatusRunning
	return true
}

func (h *jobHandle) end(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs++
	h.err = err
	if h.status != StatusRunning {
		return
	}
	if err != nil {
		h.status = StatusFailed
	} else {
		h.status = StatusIdle
	}
}

func (h *jobHandle) finish(status Status) {
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
