package cron

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-flowise/logging"
	"github.com/goliatone/go-flowise/runner"

	rcron "github.com/robfig/cron/v3"
)

const ErrCodeSchedule = "CRON_SCHEDULE"

// ErrSchedule marks an invalid job definition.
var ErrSchedule = errors.New("invalid schedule", errors.CategoryBadInput).
	WithTextCode(ErrCodeSchedule)

// Scheduler runs jobs on cron expressions.
type Scheduler struct {
	mu           sync.Mutex
	cron         *rcron.Cron
	location     *time.Location
	parser       Parser
	logger       logging.Logger
	errorHandler func(error)

	nextID  int64
	handles map[int64]*jobHandle
}

// NewScheduler creates a scheduler. It does nothing until Start.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		parser:   DefaultParser,
		logger:   logging.Discard(),
		handles:  make(map[int64]*jobHandle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.errorHandler == nil {
		s.errorHandler = func(err error) {
			s.logger.Error("scheduled job failed: %v", err)
		}
	}
	s.cron = rcron.New(s.build()...)
	return s
}

// Schedule registers fn to run on cfg.Expression. Each run gets its own
// context bounded by cfg.Timeout and is retried up to cfg.MaxRetries times.
func (s *Scheduler) Schedule(cfg JobConfig, fn func(context.Context) error) (Handle, error) {
	if strings.TrimSpace(cfg.Expression) == "" {
		err := ErrSchedule.Clone()
		err.Message = "cron expression cannot be empty"
		return nil, err
	}
	if fn == nil {
		err := ErrSchedule.Clone()
		err.Message = "job function cannot be nil"
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "job"
	}
	h := runner.NewHandler(
		runner.WithName(name),
		runner.WithMaxRetries(cfg.MaxRetries),
		runner.WithTimeout(cfg.Timeout),
		runner.WithLogger(s.logger),
	)

	handle := s.newHandle()
	job := rcron.FuncJob(func() {
		if !handle.begin() {
			return
		}
		err := h.Run(context.Background(), fn)
		handle.end(err)
		if err != nil {
			s.errorHandler(err)
		}
	})

	entryID, err := s.cron.AddJob(cfg.Expression, job)
	if err != nil {
		s.remove(handle.id)
		schedErr := ErrSchedule.Clone()
		schedErr.Message = "invalid cron expression " + cfg.Expression + ": " + err.Error()
		return nil, schedErr
	}

	s.mu.Lock()
	handle.entryID = int(entryID)
	s.mu.Unlock()

	s.logger.Debug("scheduled %s on %q", name, cfg.Expression)
	return handle, nil
}

// Start begins executing jobs in the background.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waits for running jobs up to ctx, and marks
// every handle stopped.
func (s *Scheduler) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stopped := s.cron.Stop()

	s.mu.Lock()
	handles := make([]*jobHandle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[int64]*jobHandle)
	s.mu.Unlock()

	for _, h := range handles {
		if !h.terminal() {
			h.finish(StatusStopped)
		}
	}

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) newHandle() *jobHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := &jobHandle{
		scheduler: s,
		id:        s.nextID,
		status:    StatusScheduled,
		done:      make(chan struct{}),
	}
	s.handles[h.id] = h
	return h
}

func (s *Scheduler) remove(id int64) {
	s.mu.Lock()
	h := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()
	if h != nil && h.entryID > 0 {
		s.cron.Remove(rcron.EntryID(h.entryID))
	}
}

func (s *Scheduler) build() []rcron.Option {
	opts := []rcron.Option{
		rcron.WithLogger(loggerAdapter{logger: s.logger}),
		rcron.WithChain(rcron.Recover(errorHandlerAdapter{handler: s.errorHandler})),
	}
	if s.location != nil {
		opts = append(opts, rcron.WithLocation(s.location))
	}
	if s.parser == SecondsParser {
		opts = append(opts, rcron.WithSeconds())
	}
	return opts
}
