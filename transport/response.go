package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Envelope is the JSON wrapper the API puts around every payload.
type Envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode,omitempty"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the whole body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DecodeData unmarshals the envelope's data member into v. Bodies that are not
// wrapped in an envelope are decoded as-is.
func (r *Response) DecodeData(v any) error {
	if r == nil || len(r.Body) == 0 || v == nil {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(r.Body, &env); err != nil || env.Data == nil {
		return r.Decode(v)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Failure is any call that did not produce a 2xx reply. StatusCode is zero for
// network-level failures, in which case Err holds the cause.
type Failure struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
	RequestID  string
	Err        error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch {
	case f.StatusCode == 0 && f.Err != nil:
		return fmt.Sprintf("%s %s: %v", f.Method, f.Path, f.Err)
	case f.Message != "":
		return fmt.Sprintf("%s %s: %d %s", f.Method, f.Path, f.StatusCode, f.Message)
	default:
		return fmt.Sprintf("%s %s: %d %s", f.Method, f.Path, f.StatusCode, http.StatusText(f.StatusCode))
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Network reports whether the call never produced an HTTP status.
func (f *Failure) Network() bool { return f.StatusCode == 0 }

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func decodeFailure(body []byte) (string, []byte) {
	var env Envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && env.Message != "" {
		return env.Message, body
	}
	return "", body
}
