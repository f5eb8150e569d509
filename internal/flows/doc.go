// Package flows contains pure-function orchestrators.
//
// RunExecute is the client call wrapper: issue, classify, join the shared
// refresh, replay once. RunRotate is the server-side refresh-token rotation
// used by the apitest backend. Each accepts a typed dependency struct and
// returns a result value with a failure kind; the caller maps kinds to public
// errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate the issuer, classifier, coordinator, session store
// and rate limiter. They do NOT own any of these resources; ownership stays
// with the Client or the apitest Server.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAuthClient (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependencies.
package flows
