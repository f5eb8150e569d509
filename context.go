package goAuthClient

import (
	"context"

	"github.com/MrEthical07/goAuthClient/transport"
)

// WithRequestID pins the X-Request-ID sent with calls made under ctx. A replay
// reuses the same ID, so server logs can correlate both attempts.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the ID pinned with WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return transport.RequestIDFromContext(ctx)
}
