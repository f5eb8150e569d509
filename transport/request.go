package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one outbound call. It is a value: callers build it once and
// the client never mutates it, so the same Request may be replayed after a
// credential refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is JSON-encoded when non-nil. RawBody takes precedence when set.
	Body    any
	RawBody []byte
}

// NewRequest returns a Request for method and path with no body.
func NewRequest(method, path string) Request {
	return Request{Method: method, Path: path}
}

// WithQuery returns a copy of r with key=value added to the query string.
func (r Request) WithQuery(key, value string) Request {
	q := make(url.Values, len(r.Query)+1)
	for k, v := range r.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Add(key, value)
	r.Query = q
	return r
}

// WithHeader returns a copy of r with the header set.
func (r Request) WithHeader(key, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header, 1)
	}
	h.Set(key, value)
	r.Header = h
	return r
}

// WithBody returns a copy of r carrying body as JSON.
func (r Request) WithBody(body any) Request {
	r.Body = body
	r.RawBody = nil
	return r
}

// String renders "METHOD path" for logs.
func (r Request) String() string {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + r.Path
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRequest)
	}
	if strings.Contains(r.Method, " ") {
		return fmt.Errorf("%w: malformed method %q", ErrInvalidRequest, r.Method)
	}
	return nil
}

func (r Request) encodeBody() (io.Reader, bool, error) {
	if r.RawBody != nil {
		return bytes.NewReader(r.RawBody), false, nil
	}
	if r.Body == nil {
		return nil, false, nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: marshal body: %v", ErrInvalidRequest, err)
	}
	return bytes.NewReader(data), true, nil
}

func (r Request) httpRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	target, err := resolve(baseURL, r.Path)
	if err != nil {
		return nil, err
	}
	if len(r.Query) > 0 {
		q := target.Query()
		for k, values := range r.Query {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	body, isJSON, err := r.encodeBody()
	if err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if isJSON && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

func resolve(baseURL, path string) (*url.URL, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return u, nil
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrInvalidRequest, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	out := *base
	out.Path = base.Path + "/" + strings.TrimLeft(ref.Path, "/")
	out.RawQuery = ref.RawQuery
	return &out, nil
}
