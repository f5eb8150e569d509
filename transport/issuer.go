package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidRequest is returned before any network call when a Request
	// cannot be encoded.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNilIssuer is returned by helpers handed a nil Issuer.
	ErrNilIssuer = errors.New("nil issuer")
	// ErrResponseTooLarge is carried by a *Failure whose body exceeded the
	// issuer's read limit.
	ErrResponseTooLarge = errors.New("response body too large")
)

const (
	// HeaderRequestID carries the per-attempt correlation ID.
	HeaderRequestID = "X-Request-ID"

	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 8 << 20
)

// Issuer performs exactly one call per invocation.
type Issuer interface {
	Issue(ctx context.Context, req Request) (*Response, error)
}

// IssuerFunc adapts a function to Issuer.
type IssuerFunc func(ctx context.Context, req Request) (*Response, error)

// Issue calls f.
func (f IssuerFunc) Issue(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Config configures an HTTPIssuer.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// MaxResponseBytes caps how much of a body is read. Zero means 8 MiB.
	MaxResponseBytes int64

	// HTTPClient is used as-is when set; its Jar is replaced only if nil.
	HTTPClient *http.Client
}

// HTTPIssuer is the net/http Issuer. A single instance is shared by every
// caller; its cookie jar holds the session credential.
type HTTPIssuer struct {
	baseURL   string
	userAgent string
	maxBody   int64
	client    *http.Client
	jar       *sessionJar
}

// NewHTTPIssuer validates cfg and builds an issuer with a fresh cookie jar.
func NewHTTPIssuer(cfg Config) (*HTTPIssuer, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidRequest, cfg.BaseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}
	if client.Jar == nil {
		client.Jar = jar
	}

	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = maxResponseBytes
	}

	return &HTTPIssuer{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
		client:    client,
		jar:       jar,
	}, nil
}

// BaseURL returns the API root every relative path is resolved against.
func (h *HTTPIssuer) BaseURL() string { return h.baseURL }

// Jar exposes the cookie jar holding the session credential.
func (h *HTTPIssuer) Jar() http.CookieJar { return h.client.Jar }

// ClearSession drops every cookie held by the issuer's own jar. A jar supplied
// through Config.HTTPClient is left alone.
func (h *HTTPIssuer) ClearSession() error {
	if h.client.Jar != http.CookieJar(h.jar) {
		return nil
	}
	return h.jar.reset()
}

// sessionJar is a resettable cookiejar.Jar.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &sessionJar{jar: jar}, nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	jar := j.jar
	j.mu.RUnlock()
	jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	jar := j.jar
	j.mu.RUnlock()
	return jar.Cookies(u)
}

func (j *sessionJar) reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return nil
}

// Issue performs one HTTP call. Non-2xx statuses and network errors both come
// back as *Failure.
func (h *HTTPIssuer) Issue(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	httpReq, err := req.httpRequest(ctx, h.baseURL)
	if err != nil {
		return nil, err
	}

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(HeaderRequestID, requestID)
	if h.userAgent != "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}

	method, path := httpReq.Method, req.Path

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &Failure{Method: method, Path: path, RequestID: requestID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody+1))
	if err != nil {
		return nil, &Failure{Method: method, Path: path, RequestID: requestID, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > h.maxBody {
		return nil, &Failure{
			Method:    method,
			Path:      path,
			RequestID: requestID,
			Err:       fmt.Errorf("%w: status %d, limit %d bytes", ErrResponseTooLarge, resp.StatusCode, h.maxBody),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message, raw := decodeFailure(body)
		return nil, &Failure{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    message,
			Body:       raw,
			RequestID:  requestID,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  requestID,
	}, nil
}

type requestIDContextKey struct{}

// WithRequestID pins the X-Request-ID used for calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the pinned request ID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
