package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Executor is the call wrapper a Transport delegates to. *goAuthClient.Client
// implements it.
type Executor interface {
	Execute(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// ErrNilExecutor is returned by RoundTrip on a Transport without an Executor.
var ErrNilExecutor = errors.New("middleware: nil executor")

// Transport is an http.RoundTripper that sends every request through an
// Executor, so plain *http.Client code shares the session's single-flight
// refresh. The Executor's base URL decides the target; only the path and query
// of the outgoing URL are used.
type Transport struct {
	Executor Executor
}

// NewTransport wraps exec.
func NewTransport(exec Executor) *Transport {
	return &Transport{Executor: exec}
}

// NewHTTPClient returns an *http.Client using NewTransport(exec).
func NewHTTPClient(exec Executor) *http.Client {
	return &http.Client{Transport: NewTransport(exec)}
}

// RoundTrip implements http.RoundTripper. Any HTTP status, including a final
// credential-expired reply after the single replay, comes back as a response.
// Network failures, refresh failures and cancellation come back as errors.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t == nil || t.Executor == nil {
		closeBody(r)
		return nil, ErrNilExecutor
	}

	req, err := toRequest(r)
	if err != nil {
		return nil, err
	}

	resp, err := t.Executor.Execute(r.Context(), req)
	if err != nil {
		return fromError(r, err)
	}
	return newResponse(r, resp.StatusCode, resp.Header, resp.Body), nil
}

func toRequest(r *http.Request) (transport.Request, error) {
	var raw []byte
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(r.Body)
		closeBody(r)
		if err != nil {
			return transport.Request{}, fmt.Errorf("middleware: read request body: %w", err)
		}
		raw = data
	}

	req := transport.NewRequest(r.Method, r.URL.Path)
	if r.URL.RawQuery != "" {
		req.Query = r.URL.Query()
	}
	if len(r.Header) > 0 {
		req.Header = r.Header.Clone()
	}
	req.RawBody = raw
	return req, nil
}

func fromError(r *http.Request, err error) (*http.Response, error) {
	// A refresh failure carries the renew call's reply, not this request's.
	if goAuthClient.IsRefreshFailure(err) {
		return nil, err
	}

	f, ok := transport.AsFailure(err)
	if !ok || f.Network() {
		return nil, err
	}
	header := make(http.Header)
	if f.RequestID != "" {
		header.Set(transport.HeaderRequestID, f.RequestID)
	}
	return newResponse(r, f.StatusCode, header, f.Body), nil
}

func newResponse(r *http.Request, status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

func closeBody(r *http.Request) {
	if r.Body != nil {
		_ = r.Body.Close()
	}
}
