// Package middleware adapts goAuthClient to the standard net/http client
// surface.
//
// # Transport
//
//   - [Transport] is an http.RoundTripper that routes each request through a
//     Client's Execute, so code written against *http.Client gets the shared
//     single-flight refresh and the single replay.
//   - [NewHTTPClient] wraps a Client in a ready *http.Client.
//
// # Architecture boundaries
//
// This package only translates between *http.Request / *http.Response and
// goAuthClient requests and failures. Classification, refresh and replay are
// decided by the Client.
//
// # What this package must NOT do
//
//   - Retry requests itself.
//   - Inspect or rewrite credentials or cookies.
//   - Turn a refresh failure into an HTTP response.
package middleware
