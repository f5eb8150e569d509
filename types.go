package goAuthClient

import (
	"github.com/MrEthical07/goAuthClient/classify"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/transport"
)

type (
	// Request describes one call. It is an immutable value; the With* methods
	// return modified copies.
	Request = transport.Request
	// Response is a successful (2xx) reply.
	Response = transport.Response
	// Failure is a non-2xx reply or a network-level error.
	Failure = transport.Failure
	// Issuer sends one request, once.
	Issuer = transport.Issuer
	// Signature is one "credential expired" status and message pair.
	Signature = classify.Signature
	// RefreshState is the coordinator state reported by Client.State.
	RefreshState = refresh.State
)

const (
	RefreshIdle       = refresh.StateIdle
	RefreshInProgress = refresh.StateRefreshing
)

// NewRequest returns a request for method and path.
func NewRequest(method, path string) Request {
	return transport.NewRequest(method, path)
}
