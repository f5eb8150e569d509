package goAuthClient

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goAuthClient/classify"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/transport"
)

var (
	// ErrRefreshFailed matches every *RefreshError.
	ErrRefreshFailed = errors.New("credential refresh failed")
	// ErrRetryExhausted wraps an expiry failure on an already-replayed request.
	ErrRetryExhausted = errors.New("credential still expired after refresh")
	// ErrClientNotReady is returned by a nil or closed Client.
	ErrClientNotReady = errors.New("client not ready")
	// ErrSessionEnded is delivered to RefreshConfig.OnSessionEnded, joined with
	// the refresh cause.
	ErrSessionEnded = errors.New("session ended")
	// ErrInvalidRequest is returned for requests the issuer can not send.
	ErrInvalidRequest = transport.ErrInvalidRequest
)

// RefreshError is returned to every caller that waited on a failed refresh,
// leader and queued callers alike. Err is the refresh failure itself, not the
// caller's original expiry failure.
type RefreshError struct {
	Generation uint64
	Err        error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("credential refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRefreshFailed.
func (e *RefreshError) Is(target error) bool { return target == ErrRefreshFailed }

func newRefreshError(err error) error {
	var failed *refresh.FailedError
	if errors.As(err, &failed) {
		return &RefreshError{Generation: failed.Generation, Err: failed.Err}
	}
	return &RefreshError{Err: err}
}

func retryExhausted(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryExhausted, err)
}

// IsCredentialExpired reports whether err carries one of the default expiry
// signatures. Clients configured with custom signatures should use their own
// classify.Matcher.
func IsCredentialExpired(err error) bool {
	return defaultMatcher.Classify(err).Expired()
}

// IsRefreshFailure reports whether err came from a failed refresh.
func IsRefreshFailure(err error) bool {
	return errors.Is(err, ErrRefreshFailed)
}

// StatusCode returns the HTTP status carried by err, or 0 for network-level
// failures and foreign errors.
func StatusCode(err error) int {
	if f, ok := transport.AsFailure(err); ok {
		return f.StatusCode
	}
	return 0
}

var defaultMatcher = classify.MustNew(classify.DefaultSignatures()...)
