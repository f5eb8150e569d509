// Package goAuthClient is a session-aware REST client that renews an expired
// short-lived credential transparently and replays the calls that hit the
// expiry.
//
// Any number of concurrent calls may observe the expiry at once; exactly one
// refresh is sent. Calls arriving while it is in flight queue behind it and
// are released in arrival order once it settles: replayed once on success,
// failed with a [*RefreshError] on failure. Nobody is left waiting.
//
// A [Client] is safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// goAuthClient is the public surface: [Client], [Builder], [Config], error
// helpers, metrics and audit types. Sending requests lives in transport,
// expiry detection in classify, the single-flight state machine in refresh,
// and the retry-once call wrapper in internal/flows.
//
// # What this package must NOT do
//
//   - Expose the refresh coordinator; refresh state is only reachable through
//     the Client.
//   - Retry a request more than once, or refresh for a failure that is not a
//     configured expiry signature.
//   - Define a login protocol. Login is an ordinary request.
package goAuthClient
