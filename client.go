package goAuthClient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goAuthClient/classify"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Client sends requests to one API and owns that API's session: the cookie
// jar and the single refresh coordinator. Build one per session with New().
type Client struct {
	config Config

	issuer      transport.Issuer
	httpIssuer  *transport.HTTPIssuer
	classifier  classify.Classifier
	coordinator *refresh.Coordinator
	executeDeps flows.ExecuteDeps

	logger  *slog.Logger
	metrics *Metrics
	audit   *auditDispatcher

	closed atomic.Bool
}

// Execute issues req. When the reply is a credential-expiry failure, Execute
// starts or joins the shared refresh and replays req once.
//
// Error contract:
//   - non-expiry failures are returned unchanged (*Failure, or the issuer's error);
//   - a failed refresh returns *RefreshError (errors.Is ErrRefreshFailed);
//   - an expiry on the replay returns ErrRetryExhausted wrapping the *Failure;
//     match it with errors.Is and recover the *Failure with errors.As rather
//     than comparing the returned error directly;
//   - ctx ending while queued returns ctx.Err().
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	if c == nil || c.closed.Load() {
		return nil, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.metrics.Inc(MetricRequests)
	res := flows.RunExecute(ctx, req, c.executeDeps)
	if res.Failure == flows.ExecuteFailureNone {
		return res.Response, nil
	}

	c.metrics.Inc(MetricRequestFailures)
	switch res.Failure {
	case flows.ExecuteFailurePassthrough:
		c.metrics.Inc(MetricPassthroughFailures)
		return nil, res.Err

	case flows.ExecuteFailureRetryExhausted:
		c.metrics.Inc(MetricRetryExhausted)
		c.logger.WarnContext(ctx, "credential still expired after refresh",
			"request", req.String(), "status", StatusCode(res.Err))
		c.emitAudit(ctx, AuditEvent{
			EventType:  AuditRetryExhausted,
			Generation: generationOf(res.Refresh),
			RequestID:  requestIDOf(ctx, res.Err),
			Method:     req.Method,
			Path:       req.Path,
			Error:      res.Err.Error(),
		})
		return nil, retryExhausted(res.Err)

	case flows.ExecuteFailureRefresh:
		return nil, newRefreshError(res.Err)

	default:
		return nil, res.Err
	}
}

// Get issues GET path and decodes the envelope data into out when out is
// non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues POST path with body JSON-encoded.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := transport.NewRequest(method, path)
	if body != nil {
		req = req.WithBody(body)
	}
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeData(out)
}

// Refresh renews the credential now. If a refresh is already in flight the
// caller joins it instead of starting another.
func (c *Client) Refresh(ctx context.Context) error {
	if c == nil || c.closed.Load() {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := c.awaitRefresh(ctx)
	if err != nil && errors.Is(err, refresh.ErrFailed) {
		return newRefreshError(err)
	}
	return err
}

// Logout calls Transport.LogoutPath and clears the session cookies. The jar is
// cleared even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.closed.Load() {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := c.Execute(ctx, transport.NewRequest(http.MethodPost, c.config.Transport.LogoutPath))
	if c.httpIssuer != nil {
		if clearErr := c.httpIssuer.ClearSession(); clearErr != nil && err == nil {
			err = clearErr
		}
	}

	c.metrics.Inc(MetricLogout)
	event := AuditEvent{EventType: AuditLogout, Success: err == nil}
	if err != nil {
		event.Error = err.Error()
	}
	c.emitAudit(ctx, event)
	c.logger.InfoContext(ctx, "logged out", "error", err)
	return err
}

// State reports whether a refresh is in flight.
func (c *Client) State() RefreshState {
	return c.coordinator.State()
}

// Waiting returns the number of calls queued behind the in-flight refresh.
func (c *Client) Waiting() int {
	return c.coordinator.Waiting()
}

// Refreshes returns the number of refreshes started so far.
func (c *Client) Refreshes() uint64 {
	return c.coordinator.Generation()
}

// Jar returns the session cookie jar of the default issuer, or nil when a
// custom issuer is in use.
func (c *Client) Jar() http.CookieJar {
	if c.httpIssuer == nil {
		return nil
	}
	return c.httpIssuer.Jar()
}

// Metrics returns the live counters, for exporters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the current counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close stops the audit dispatcher. Calls after Close fail with
// ErrClientNotReady; a refresh already in flight still settles.
func (c *Client) Close() {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.audit.Close()
}

// renew is the default refresh function: the distinguished renew call sent
// straight through the issuer, never through Execute.
func (c *Client) renew(ctx context.Context) error {
	_, err := c.issuer.Issue(ctx, transport.NewRequest(http.MethodPost, c.config.Transport.RefreshPath))
	return err
}

// awaitRefresh starts or joins a refresh. The leader of a failed generation
// returns only after every waiter has been released, so it is the one place
// that reports the end of the session.
func (c *Client) awaitRefresh(ctx context.Context) (refresh.Outcome, error) {
	out, err := c.coordinator.Await(ctx)
	if err != nil && out.Leader && errors.Is(err, refresh.ErrFailed) {
		c.sessionEnded(ctx, out.Generation, err)
	}
	return out, err
}

func (c *Client) sessionEnded(ctx context.Context, generation uint64, err error) {
	c.metrics.Inc(MetricSessionEnded)
	c.emitAudit(ctx, AuditEvent{
		EventType:  AuditSessionEnded,
		Generation: generation,
		Error:      err.Error(),
	})
	c.logger.WarnContext(ctx, "session ended", "generation", generation, "error", err)

	if fn := c.config.Refresh.OnSessionEnded; fn != nil {
		fn(errors.Join(ErrSessionEnded, newRefreshError(err)))
	}
}

func (c *Client) refreshHooks() refresh.Hooks {
	return refresh.Hooks{
		OnStart: func(generation uint64) {
			c.metrics.Inc(MetricRefreshStarted)
			c.logger.Debug("refresh started", "generation", generation)
			c.tryAudit(AuditEvent{
				EventType:  AuditRefreshStarted,
				Generation: generation,
				Success:    true,
			})
		},
		OnEnqueue: func(generation uint64, position int) {
			c.metrics.Inc(MetricRefreshWaiters)
			c.logger.Debug("queued behind refresh", "generation", generation, "position", position)
		},
		OnSettle: func(generation uint64, waiters int, elapsed time.Duration, err error) {
			c.metrics.Observe(MetricRefreshLatency, elapsed)
			event := AuditEvent{
				Generation: generation,
				Waiters:    waiters,
				Duration:   elapsed,
				Success:    err == nil,
			}
			if err != nil {
				c.metrics.Inc(MetricRefreshFailed)
				event.EventType = AuditRefreshFailed
				event.Error = err.Error()
				c.logger.Warn("refresh failed",
					"generation", generation, "waiters", waiters, "elapsed", elapsed, "error", err)
			} else {
				c.metrics.Inc(MetricRefreshSucceeded)
				event.EventType = AuditRefreshSucceeded
				c.logger.Info("refresh succeeded",
					"generation", generation, "waiters", waiters, "elapsed", elapsed)
			}
			c.tryAudit(event)
		},
	}
}

func (c *Client) buildExecuteDeps() flows.ExecuteDeps {
	return flows.ExecuteDeps{
		Issuer:       c.issuer,
		Classifier:   c.classifier,
		AwaitRefresh: c.awaitRefresh,
		OnFailure: func(_ flows.Attempt, cl classify.Classification) {
			if cl.Expired() {
				c.metrics.Inc(MetricExpiredDetected)
			}
		},
		OnRetry: func(a flows.Attempt, out refresh.Outcome) {
			c.metrics.Inc(MetricRetriesIssued)
			c.logger.Debug("replaying request after refresh",
				"request", a.Request.String(), "generation", out.Generation, "leader", out.Leader)
		},
	}
}

func (c *Client) emitAudit(ctx context.Context, event AuditEvent) {
	if c.audit == nil {
		return
	}
	c.audit.Emit(ctx, event)
}

// tryAudit is for coordinator hooks, which run while the refresh state is
// held and must not wait on a slow sink.
func (c *Client) tryAudit(event AuditEvent) {
	if c.audit == nil {
		return
	}
	c.audit.TryEmit(event)
}

func generationOf(out *refresh.Outcome) uint64 {
	if out == nil {
		return 0
	}
	return out.Generation
}

func requestIDOf(ctx context.Context, err error) string {
	if f, ok := transport.AsFailure(err); ok && f.RequestID != "" {
		return f.RequestID
	}
	return transport.RequestIDFromContext(ctx)
}
