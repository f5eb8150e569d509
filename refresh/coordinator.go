package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the coordinator's externally visible state.
type State uint8

const (
	// StateIdle means no refresh is outstanding.
	StateIdle State = iota
	// StateRefreshing means a refresh is in flight and new callers queue.
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "refreshing"
	}
	return "idle"
}

// Func performs the renew-credential call. It receives a context detached
// from the leader's cancellation and bounded by the coordinator timeout.
type Func func(ctx context.Context) error

var (
	// ErrFailed matches every *FailedError through errors.Is.
	ErrFailed = errors.New("credential refresh failed")
	// ErrNilFunc is returned by New without a refresh function.
	ErrNilFunc = errors.New("nil refresh func")
)

// FailedError is delivered to the leader and every waiter of a failed
// refresh generation.
type FailedError struct {
	Generation uint64
	Err        error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("credential refresh failed (generation %d): %v", e.Generation, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFailed.
func (e *FailedError) Is(target error) bool { return target == ErrFailed }

// Outcome is what a caller of Await learns about the refresh it led or joined.
type Outcome struct {
	Generation uint64
	Leader     bool
	// Position is the 1-based queue slot for waiters and 0 for the leader.
	Position int
	Err      error
}

// Resumed reports whether the refresh succeeded and the caller may retry.
func (o Outcome) Resumed() bool { return o.Err == nil }

// Hooks observe state transitions. Every hook is optional and runs outside
// the coordinator lock.
type Hooks struct {
	OnStart   func(generation uint64)
	OnEnqueue func(generation uint64, position int)
	OnSettle  func(generation uint64, waiters int, elapsed time.Duration, err error)
	OnRelease func(generation uint64, position int, err error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout bounds every refresh. A refresh still running at the deadline
// settles as failed with context.DeadlineExceeded. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHooks installs transition observers.
func WithHooks(h Hooks) Option {
	return func(c *Coordinator) { c.hooks = h }
}

// Coordinator is the process-wide session state: the refreshing flag and the
// wait queue. The zero value is not usable; build one with New.
type Coordinator struct {
	fn      Func
	timeout time.Duration
	hooks   Hooks

	mu         sync.Mutex
	refreshing bool
	generation uint64
	queue      []chan Outcome
}

// New builds an idle Coordinator around fn.
func New(fn Func, opts ...Option) (*Coordinator, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	c := &Coordinator{fn: fn}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Await starts a refresh if none is outstanding, or joins the one in flight.
// It returns once that refresh settles. The returned error is the outcome's
// *FailedError, or ctx.Err() if a waiting caller gives up first; in the latter
// case its queue slot is still released without blocking.
//
// The leader's ctx only contributes values: cancelling it does not abort a
// refresh other callers are waiting on.
func (c *Coordinator) Await(ctx context.Context) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.refreshing {
		slot := make(chan Outcome, 1)
		c.queue = append(c.queue, slot)
		generation, position := c.generation, len(c.queue)
		c.mu.Unlock()

		if c.hooks.OnEnqueue != nil {
			c.hooks.OnEnqueue(generation, position)
		}

		select {
		case out := <-slot:
			return out, out.Err
		case <-ctx.Done():
			return Outcome{Generation: generation, Position: position}, ctx.Err()
		}
	}
	c.refreshing = true
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	return c.lead(ctx, generation)
}

func (c *Coordinator) lead(ctx context.Context, generation uint64) (Outcome, error) {
	if c.hooks.OnStart != nil {
		c.hooks.OnStart(generation)
	}

	start := time.Now()
	err := c.run(ctx, generation)
	c.settle(generation, err, time.Since(start))

	return Outcome{Generation: generation, Leader: true, Err: err}, err
}

func (c *Coordinator) run(ctx context.Context, generation uint64) error {
	rctx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, c.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- c.call(rctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-rctx.Done():
		err = rctx.Err()
	}
	if err != nil {
		return &FailedError{Generation: generation, Err: err}
	}
	return nil
}

func (c *Coordinator) call(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panic: %v", r)
		}
	}()
	return c.fn(ctx)
}

// settle returns the coordinator to idle and detaches the queue in one
// critical section, then releases waiters in arrival order.
func (c *Coordinator) settle(generation uint64, err error, elapsed time.Duration) {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	if c.hooks.OnSettle != nil {
		c.hooks.OnSettle(generation, len(queue), elapsed, err)
	}

	for i, slot := range queue {
		position := i + 1
		if c.hooks.OnRelease != nil {
			c.hooks.OnRelease(generation, position, err)
		}
		// Capacity 1 and exactly one send per slot: never blocks.
		slot <- Outcome{Generation: generation, Position: position, Err: err}
	}
}

// State reports whether a refresh is outstanding.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing {
		return StateRefreshing
	}
	return StateIdle
}

// Waiting returns the number of queued callers.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Generation returns the number of refreshes started so far.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}
