// Package internal contains helpers that are private to goAuthClient, chiefly
// the opaque refresh-token codec used by the apitest backend.
//
// # Sub-packages
//
//   - flows — pure-function orchestrators for the call wrapper and for
//     server-side refresh rotation
//   - logger — slog construction from level/format settings
//   - rate — Redis-backed fixed-window refresh throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAuthClient API.
//   - Be imported by any package outside the goAuthClient module.
package internal
