// Package rate provides the Redis-backed refresh throttle used by the apitest
// backend.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit, keyed
// "ar:<session id>".
//
// # What this package must NOT do
//
//   - Be imported outside the goAuthClient module.
package rate
