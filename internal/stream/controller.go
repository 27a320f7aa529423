// Package stream runs queries in the background and streams their rows into
// a grid. At most one query runs at a time and the newest request wins.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sqlite-browser/internal/grid"
	"sqlite-browser/internal/query"
)

// DefaultRetryWait bounds how long a new request waits for the cancelled
// query before it is started anyway.
const DefaultRetryWait = time.Second

var (
	// ErrRetryTimeout is logged when a cancelled query outlives the retry wait.
	ErrRetryTimeout = errors.New("cancelled query did not stop within the retry wait")
	ErrStopped      = errors.New("stream controller stopped")
	ErrNoSink       = errors.New("request has no grid")
)

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Streaming
	Cancelling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Cancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// Callbacks are invoked on the sink's execution context.
type Callbacks struct {
	// OnRow receives the number of rows written so far, starting at 1.
	OnRow func(count int)
	// OnComplete fires once the query ran to the end.
	OnComplete func(elapsed time.Duration)
	// OnError reports an engine failure. Rows already written stay.
	OnError func(err error)
}

// Request is a query to stream into Sink.
type Request struct {
	SQL  string
	Sink grid.Sink
	Callbacks
}

// Options configures a Controller.
type Options struct {
	RetryWait time.Duration
	Logger    *slog.Logger
}

type run struct {
	gen     uint64
	req     Request
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// Controller owns the streaming query of one session.
type Controller struct {
	ch        *query.Channel
	retryWait time.Duration
	logger    *slog.Logger

	root       context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	state   State
	gen     uint64
	active  *run
	pending *Request
	waiting bool
	stopped bool
	wg      sync.WaitGroup
}

// NewController creates an idle controller over ch.
func NewController(ch *query.Channel, opts Options) *Controller {
	if opts.RetryWait <= 0 {
		opts.RetryWait = DefaultRetryWait
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		ch:         ch,
		retryWait:  opts.RetryWait,
		logger:     opts.Logger,
		root:       root,
		rootCancel: cancel,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run starts req, cancelling the query in flight if there is one. It never
// blocks on the query itself.
func (c *Controller) Run(req Request) error {
	if req.Sink == nil {
		return ErrNoSink
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.active == nil && !c.waiting {
		c.startLocked(req)
		return nil
	}

	c.state = Cancelling
	if c.active != nil {
		c.active.cancel()
	}
	if c.pending != nil {
		c.logger.Debug("Query superseded before it started", "sql", c.pending.SQL)
	}
	c.pending = &req

	if !c.waiting {
		c.waiting = true
		c.wg.Add(1)
		go c.awaitAndDispatch(c.active)
	}
	return nil
}

// Preempt cancels the running or pending query that targets sink and
// discards anything it has not written yet.
func (c *Controller) Preempt(sink grid.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil && c.pending.Sink == sink {
		c.pending = nil
	}
	if c.active != nil && c.active.req.Sink == sink {
		c.active.cancel()
		c.state = Cancelling
		c.gen++
	}
}

// Stop cancels everything and waits up to the retry wait for the background
// goroutines to exit. Stop is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.pending = nil
	c.gen++
	c.rootCancel()
	c.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(c.retryWait):
		c.logger.Warn("Stream controller stopped with a query still running", "error", ErrRetryTimeout)
	}
}

func (c *Controller) startLocked(req Request) {
	c.gen++
	ctx, cancel := context.WithCancel(c.root)
	r := &run{
		gen:     c.gen,
		req:     req,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	c.active = r
	c.state = Streaming

	c.logger.Debug("Query started", "sql", req.SQL, "generation", r.gen)
	c.wg.Add(1)
	go c.work(ctx, r)
}

// awaitAndDispatch waits for prev to finish, or for the retry wait, then
// starts the newest pending request.
func (c *Controller) awaitAndDispatch(prev *run) {
	defer c.wg.Done()

	if prev != nil {
		timer := time.NewTimer(c.retryWait)
		defer timer.Stop()

		select {
		case <-prev.done:
		case <-timer.C:
			c.logger.Warn("Cancelled query still running, starting the next one",
				"error", ErrRetryTimeout, "sql", prev.req.SQL, "wait", c.retryWait)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.waiting = false
	req := c.pending
	c.pending = nil
	if req == nil || c.stopped {
		if c.active == nil {
			c.state = Idle
		}
		return
	}
	c.startLocked(*req)
}

func (c *Controller) work(ctx context.Context, r *run) {
	defer c.wg.Done()
	defer c.finish(r)

	req := r.req
	var sinkErr error

	// apply runs fn on the sink context unless the run has been superseded.
	apply := func(fn func()) bool {
		if ctx.Err() != nil {
			return false
		}
		err := req.Sink.Invoke(func() {
			if c.current(r.gen) {
				fn()
			}
		})
		if err != nil {
			sinkErr = err
			return false
		}
		return ctx.Err() == nil
	}

	if !apply(req.Sink.Clear) {
		c.logEnd(ctx, r, sinkErr, nil, 0)
		return
	}

	count := 0
	err := c.ch.ExecuteStreaming(ctx, req.SQL,
		func(columns []string) bool {
			return apply(func() {
				for _, name := range columns {
					req.Sink.AddColumn(name)
				}
			})
		},
		func(row query.Row) bool {
			return apply(func() {
				grid.AppendRow(req.Sink, row.Values)
				count++
				if req.OnRow != nil {
					req.OnRow(count)
				}
			})
		})

	switch {
	case sinkErr != nil, ctx.Err() != nil:
	case err != nil:
		apply(func() {
			if req.OnError != nil {
				req.OnError(err)
			}
		})
	default:
		elapsed := time.Since(r.started)
		apply(func() {
			if req.OnComplete != nil {
				req.OnComplete(elapsed)
			}
		})
	}
	c.logEnd(ctx, r, sinkErr, err, count)
}

func (c *Controller) logEnd(ctx context.Context, r *run, sinkErr, err error, rows int) {
	switch {
	case sinkErr != nil:
		c.logger.Debug("Grid closed, query abandoned", "sql", r.req.SQL, "error", sinkErr)
	case ctx.Err() != nil:
		c.logger.Debug("Query cancelled", "sql", r.req.SQL, "rows", rows)
	case err != nil:
		c.logger.Warn("Query failed", "sql", r.req.SQL, "error", err)
	default:
		c.logger.Info("Query complete", "sql", r.req.SQL, "rows", rows, "duration", time.Since(r.started))
	}
}

func (c *Controller) finish(r *run) {
	c.mu.Lock()
	if c.active == r {
		c.active = nil
		if !c.waiting {
			c.state = Idle
		}
	}
	c.mu.Unlock()

	r.cancel()
	close(r.done)
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}
