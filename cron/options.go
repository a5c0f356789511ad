package cron

import (
	"fmt"
	"time"

	"github.com/goliatone/go-flowise/logging"
)

// Parser selects the cron expression dialect.
type Parser int

const (
	// DefaultParser accepts five fields plus descriptors such as "@every 10m".
	DefaultParser Parser = iota
	SecondsParser
)

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logging.Normalize(logger)
	}
}

func WithErrorHandler(handler func(error)) Option {
	return func(s *Scheduler) {
		if handler != nil {
			s.errorHandler = handler
		}
	}
}

func WithParser(p Parser) Option {
	return func(s *Scheduler) {
		s.parser = p
	}
}

// JobConfig describes a recurring job.
type JobConfig struct {
	Name       string
	Expression string
	Timeout    time.Duration
	MaxRetries int
}

// loggerAdapter feeds robfig/cron's logger into ours.
type loggerAdapter struct {
	logger logging.Logger
}

func (l loggerAdapter) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (l loggerAdapter) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: %s: %v %v", msg, err, keysAndValues)
}

// errorHandlerAdapter turns recovered job panics into error handler calls.
type errorHandlerAdapter struct {
	handler func(error)
}

func (e errorHandlerAdapter) Info(string, ...any) {}

func (e errorHandlerAdapter) Error(err error, msg string, keysAndValues ...any) {
	if err == nil {
		err = fmt.Errorf("%s %v", msg, keysAndValues)
	}
	e.handler(err)
}
