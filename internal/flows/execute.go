package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAuthClient/classify"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/transport"
)

// ExecuteFailureKind classifies call-wrapper failures for root-level mapping.
type ExecuteFailureKind int

const (
	ExecuteFailureNone ExecuteFailureKind = iota
	// ExecuteFailurePassthrough is a non-expiry failure, returned unchanged.
	ExecuteFailurePassthrough
	// ExecuteFailureRetryExhausted is an expiry on the already-retried attempt.
	ExecuteFailureRetryExhausted
	// ExecuteFailureRefresh means the refresh this call led or joined failed.
	ExecuteFailureRefresh
	// ExecuteFailureCanceled means the caller's context ended while queued.
	ExecuteFailureCanceled
)

func (k ExecuteFailureKind) String() string {
	switch k {
	case ExecuteFailureNone:
		return "none"
	case ExecuteFailurePassthrough:
		return "passthrough"
	case ExecuteFailureRetryExhausted:
		return "retry_exhausted"
	case ExecuteFailureRefresh:
		return "refresh_failed"
	case ExecuteFailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Attempt pairs a request with its retry marker. The marker travels with the
// call, never inside the request, so a replay can not be retried again.
type Attempt struct {
	Request transport.Request
	Retried bool
}

// ExecuteResult carries either the final response or failure metadata.
type ExecuteResult struct {
	Failure  ExecuteFailureKind
	Err      error
	Response *transport.Response
	// Attempts is the number of times the request was issued (1 or 2).
	Attempts int
	// Refresh is set when the call waited on a refresh.
	Refresh *refresh.Outcome
}

// ExecuteDeps captures call-wrapper dependencies.
type ExecuteDeps struct {
	Issuer       transport.Issuer
	Classifier   classify.Classifier
	AwaitRefresh func(context.Context) (refresh.Outcome, error)

	// Optional observers.
	OnFailure func(Attempt, classify.Classification)
	OnRetry   func(Attempt, refresh.Outcome)
}

// RunExecute issues req and, on a credential-expiry failure, waits for the
// shared refresh and replays the request exactly once.
func RunExecute(ctx context.Context, req transport.Request, deps ExecuteDeps) ExecuteResult {
	attempt := Attempt{Request: req}
	result := ExecuteResult{}

	for {
		result.Attempts++
		resp, err := deps.Issuer.Issue(ctx, attempt.Request)
		if err == nil {
			result.Failure = ExecuteFailureNone
			result.Err = nil
			result.Response = resp
			return result
		}

		c := deps.Classifier.Classify(err)
		if deps.OnFailure != nil {
			deps.OnFailure(attempt, c)
		}
		if !c.Expired() {
			result.Failure = ExecuteFailurePassthrough
			result.Err = err
			return result
		}
		if attempt.Retried {
			result.Failure = ExecuteFailureRetryExhausted
			result.Err = err
			return result
		}

		outcome, err := deps.AwaitRefresh(ctx)
		result.Refresh = &outcome
		if err != nil {
			result.Err = err
			if errors.Is(err, refresh.ErrFailed) {
				result.Failure = ExecuteFailureRefresh
			} else {
				result.Failure = ExecuteFailureCanceled
			}
			return result
		}

		attempt = Attempt{Request: attempt.Request, Retried: true}
		if deps.OnRetry != nil {
			deps.OnRetry(attempt, outcome)
		}
	}
}
