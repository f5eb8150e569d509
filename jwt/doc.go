// Package jwt mints and verifies the short-lived access tokens served by the
// apitest backend. Expiry surfaces as [ErrExpired], whose text is the message
// token the client's classifier matches on.
package jwt
