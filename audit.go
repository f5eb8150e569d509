package goAuthClient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Audit event types.
const (
	AuditRefreshStarted   = "refresh_started"
	AuditRefreshSucceeded = "refresh_succeeded"
	AuditRefreshFailed    = "refresh_failed"
	AuditRetryExhausted   = "retry_exhausted"
	AuditSessionEnded     = "session_ended"
	AuditLogout           = "logout"
)

// AuditEvent records one session lifecycle transition.
type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	Generation uint64            `json:"generation,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Method     string            `json:"method,omitempty"`
	Path       string            `json:"path,omitempty"`
	Waiters    int               `json:"waiters,omitempty"`
	Duration   time.Duration     `json:"duration_ns,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// SlogSink logs events at info level, failures at warn.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(ctx context.Context, event AuditEvent) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "audit",
		slog.String("event", event.EventType),
		slog.Uint64("generation", event.Generation),
		slog.String("request_id", event.RequestID),
		slog.Int("waiters", event.Waiters),
		slog.Duration("duration", event.Duration),
		slog.String("error", event.Error),
	)
}
