// Package transport performs single outbound calls against the remote API.
//
// # Request model
//
// A [Request] is an immutable description of one call: method, path, query,
// headers and an optional JSON or raw body. An [Issuer] turns it into exactly
// one network round-trip and returns either a [Response] or a [*Failure].
//
// # Architecture boundaries
//
// This package owns request encoding, the shared cookie jar that carries the
// ambient session identifier, and decoding of the API error envelope into
// [Failure]. It does NOT decide what a failure means: expiry detection belongs
// to package classify, and replay after a refresh belongs to the client.
//
// # What this package must NOT do
//
//   - Retry, back off, or remember previous calls.
//   - Import goAuthClient, classify, or refresh (no upward imports).
//   - Distinguish network failures from application failures beyond their shape.
package transport
