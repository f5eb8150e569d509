package goAuthClient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher decouples sinks from the request path: Emit enqueues, a
// single goroutine delivers in order.
type auditDispatcher struct {
	cfg       AuditConfig
	sink      AuditSink
	logger    *slog.Logger
	ch        chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		ch:     make(chan AuditEvent, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain what was accepted before Close.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit stamps and enqueues event. With DropIfFull a full buffer drops the
// event; otherwise Emit blocks until there is room, ctx ends, or Close.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.cfg.DropIfFull {
		d.tryEnqueue(event)
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// TryEmit stamps and enqueues event without ever blocking. A full buffer
// drops the event whatever DropIfFull says.
func (d *auditDispatcher) TryEmit(event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	d.tryEnqueue(event)
}

func (d *auditDispatcher) tryEnqueue(event AuditEvent) {
	select {
	case d.ch <- event:
	case <-d.done:
	default:
		if d.dropped.Add(1) == 1 && d.logger != nil {
			d.logger.Warn("audit buffer full, dropping events", "buffer_size", d.cfg.BufferSize)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
