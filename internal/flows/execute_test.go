package flows

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goAuthClient/classify"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expiredFailure = &transport.Failure{StatusCode: http.StatusBadRequest, Message: "jwt expired"}

// scriptedIssuer replays a fixed list of results, one per call.
type scriptedIssuer struct {
	calls   atomic.Int32
	results []error
}

func (s *scriptedIssuer) Issue(_ context.Context, req transport.Request) (*transport.Response, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.results) && s.results[n] != nil {
		return nil, s.results[n]
	}
	return &transport.Response{StatusCode: http.StatusOK, Body: []byte(req.Path)}, nil
}

func newDeps(t *testing.T, issuer transport.Issuer, refreshErr error) (ExecuteDeps, *atomic.Int32) {
	t.Helper()
	var refreshes atomic.Int32
	coord, err := refresh.New(func(context.Context) error {
		refreshes.Add(1)
		return refreshErr
	})
	require.NoError(t, err)
	return ExecuteDeps{
		Issuer:       issuer,
		Classifier:   classify.MustNew(classify.DefaultSignatures()...),
		AwaitRefresh: coord.Await,
	}, &refreshes
}

func TestRunExecuteSuccessFirstAttempt(t *testing.T) {
	issuer := &scriptedIssuer{}
	deps, refreshes := newDeps(t, issuer, nil)

	res := RunExecute(context.Background(), transport.NewRequest(http.MethodGet, "/user/profile"), deps)

	require.Equal(t, ExecuteFailureNone, res.Failure)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Nil(t, res.Refresh)
	assert.Zero(t, refreshes.Load())
}

func TestRunExecuteRefreshesAndReplaysOnce(t *testing.T) {
	issuer := &scriptedIssuer{results: []error{expiredFailure}}
	deps, refreshes := newDeps(t, issuer, nil)

	var retried []Attempt
	deps.OnRetry = func(a Attempt, _ refresh.Outcome) { retried = append(retried, a) }

	res := RunExecute(context.Background(), transport.NewRequest(http.MethodGet, "/user/profile"), deps)

	require.Equal(t, ExecuteFailureNone, res.Failure)
	assert.Equal(t, "/user/profile", string(res.Response.Body))
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(1), refreshes.Load())
	require.NotNil(t, res.Refresh)
	assert.True(t, res.Refresh.Leader)
	require.Len(t, retried, 1)
	assert.True(t, retried[0].Retried)
}

func TestRunExecuteNoDoubleRetry(t *testing.T) {
	issuer := &scriptedIssuer{results: []error{expiredFailure, expiredFailure, expiredFailure}}
	deps, refreshes := newDeps(t, issuer, nil)

	res := RunExecute(context.Background(), transport.NewRequest(http.MethodGet, "/x"), deps)

	require.Equal(t, ExecuteFailureRetryExhausted, res.Failure)
	assert.Same(t, expiredFailure, res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), issuer.calls.Load())
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestRunExecutePassthrough(t *testing.T) {
	notFound := &transport.Failure{StatusCode: http.StatusNotFound, Message: "Route not found"}
	network := &transport.Failure{Err: context.DeadlineExceeded}

	for _, failure := range []error{notFound, network, errors.New("opaque")} {
		issuer := &scriptedIssuer{results: []error{failure}}
		deps, refreshes := newDeps(t, issuer, nil)

		var seen []classify.Classification
		deps.OnFailure = func(_ Attempt, c classify.Classification) { seen = append(seen, c) }

		res := RunExecute(context.Background(), transport.NewRequest(http.MethodGet, "/x"), deps)

		require.Equal(t, ExecuteFailurePassthrough, res.Failure)
		assert.True(t, failure == res.Err, "failure must be returned unchanged")
		assert.Zero(t, refreshes.Load())
		require.Len(t, seen, 1)
		assert.Equal(t, classify.KindOther, seen[0].Kind)
	}
}

func TestRunExecuteReplayPassthrough(t *testing.T) {
	forbidden := &transport.Failure{StatusCode: http.StatusForbidden, Message: "forbidden"}
	issuer := &scriptedIssuer{results: []error{expiredFailure, forbidden}}
	deps, _ := newDeps(t, issuer, nil)

	res := RunExecute(context.Background(), transport.NewRequest(http.MethodGet, "/x"), deps)

	require.Equal(t, ExecuteFailurePassthrough, res.Failure)
	assert.Same(t, forbidden, res.Err)
	assert.Equal(t, 2, res.Attempts)
}

func TestRunExecuteRefreshFailure(t *testing.T) {
	cause := &transport.Failure{StatusCode: http.StatusUnauthorized, Message: "Invalid refresh token"}
	issuer := &scriptedIssuer{results: []error{expiredFailure}}
	deps, _ := newDeps(t, issuer, cause)

	res := RunExecute(context.Background(), transport.NewRequest(http.MethodGet, "/x"), deps)

	require.Equal(t, ExecuteFailureRefresh, res.Failure)
	assert.ErrorIs(t, res.Err, refresh.ErrFailed)
	assert.ErrorIs(t, res.Err, cause)
	assert.Equal(t, 1, res.Attempts)
}

func TestRunExecuteCanceledWhileQueued(t *testing.T) {
	issuer := &scriptedIssuer{results: []error{expiredFailure}}
	deps := ExecuteDeps{
		Issuer:     issuer,
		Classifier: classify.MustNew(classify.DefaultSignatures()...),
		AwaitRefresh: func(ctx context.Context) (refresh.Outcome, error) {
			return refresh.Outcome{Position: 3}, context.Canceled
		},
	}

	res := RunExecute(context.Background(), transport.NewRequest(http.MethodGet, "/x"), deps)

	require.Equal(t, ExecuteFailureCanceled, res.Failure)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, "canceled", res.Failure.String())
}
