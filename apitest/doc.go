// Package apitest is an in-process backend for exercising goAuthClient end to
// end.
//
// It speaks the wire contract the client expects: a JSON envelope
// {success, statusCode, message, data} around every reply, an access-token
// cookie that expires with a fixed status and message, and a rotating refresh
// cookie renewed by POST /auth/refresh-token.
//
// # Architecture boundaries
//
// Access tokens come from package jwt, refresh sessions live in Redis through
// package session (an embedded miniredis unless a client is supplied), login
// verifies Argon2 hashes from package password, and rotation runs through
// internal/flows.RunRotate. A refresh token can be spent once; replaying a
// rotated token is rejected, which is what a duplicate client refresh looks
// like from the server side.
//
// # What this package must NOT do
//
//   - Import the goAuthClient root package.
//   - Be used as a production authentication server.
package apitest
