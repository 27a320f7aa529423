package grid

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrLoopStopped is returned when work is handed to a stopped Loop.
var ErrLoopStopped = errors.New("grid loop stopped")

// Loop is a single-goroutine execution context. Functions posted to it run
// one at a time in FIFO order.
//
// Invoke and Stop must not be called from a function running on the same
// Loop; they would wait on themselves.
type Loop struct {
	cmds     chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewLoop starts a loop. buffer sizes the command queue.
func NewLoop(buffer int, logger *slog.Logger) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		cmds:   make(chan func(), buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Post queues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.quit:
		return ErrLoopStopped
	default:
	}

	select {
	case l.cmds <- fn:
		return nil
	case <-l.quit:
		return ErrLoopStopped
	}
}

// Invoke runs fn on the loop and waits for it to return.
func (l *Loop) Invoke(fn func()) error {
	ran := make(chan struct{})
	if err := l.Post(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-ran:
		return nil
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Stop ends the loop after the function currently running, if any. Queued
// functions that have not started are dropped. Stop is idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.done
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.cmds:
			l.exec(fn)
		case <-l.quit:
			return
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Grid action panicked", "panic", r)
		}
	}()
	fn()
}
