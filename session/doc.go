// Package session provides Redis-backed refresh-session persistence for the
// apitest backend.
//
// # Rotation
//
// Each session stores the SHA-256 of exactly one valid refresh secret. A
// refresh presents the current secret and installs the next one through a Lua
// compare-and-swap, so two refreshes racing with the same secret can never
// both succeed: the loser sees [ErrRefreshHashMismatch]. That is the failure a
// client without single-flight refresh runs into.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It
// does NOT mint access tokens, parse cookies, or decide HTTP responses.
//
// # What this package must NOT do
//
//   - Import goAuthClient, jwt, or apitest.
//   - Store plaintext refresh secrets.
package session
