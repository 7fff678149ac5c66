package service

import (
	"context"
	"errors"

	"energy_console/internal/console"
	"energy_console/internal/logger"
	"energy_console/internal/repository"
)

// ErrLoopStopped is returned when work is submitted after the loop exited.
var ErrLoopStopped = errors.New("console loop stopped")

const defaultQueueSize = 256

// StateObserver is told about console state after every loop step.
type StateObserver interface {
	ObserveConsole(c *console.Console)
}

type step struct {
	fn   func(ctx context.Context, c *console.Console)
	done chan struct{}
}

// Loop owns the console and runs every mutation on one goroutine, in the
// order it was submitted. Journal entries queued by a step are written after it.
type Loop struct {
	console  *console.Console
	journal  repository.EventRepo
	observer StateObserver
	log      *logger.Logger

	steps   chan step
	stopped chan struct{}
}

// NewLoop builds a loop around c. journal and observer may be nil.
func NewLoop(c *console.Console, journal repository.EventRepo, observer StateObserver, log *logger.Logger) *Loop {
	return &Loop{
		console:  c,
		journal:  journal,
		observer: observer,
		log:      log,
		steps:    make(chan step, defaultQueueSize),
		stopped:  make(chan struct{}),
	}
}

// Run executes submitted steps until ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-l.steps:
			s.fn(ctx, l.console)
			l.afterStep(ctx)
			if s.done != nil {
				close(s.done)
			}
		}
	}
}

func (l *Loop) afterStep(ctx context.Context) {
	if l.observer != nil {
		l.observer.ObserveConsole(l.console)
	}
	events := l.console.DrainJournal()
	if l.journal == nil {
		return
	}
	for _, e := range events {
		if err := l.journal.Append(ctx, e); err != nil && l.log != nil {
			l.log.Warnw("journal_append_failed", "type", e.Type, "err", err)
		}
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context, c *console.Console)) error {
	s := step{fn: fn, done: make(chan struct{})}
	select {
	case l.steps <- s:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-s.done:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues fn without waiting. It blocks only while the queue is full.
func (l *Loop) Submit(fn func(ctx context.Context, c *console.Console)) {
	select {
	case l.steps <- step{fn: fn}:
	case <-l.stopped:
	}
}
