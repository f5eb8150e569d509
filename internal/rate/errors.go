package rate

import "errors"

var (
	// ErrRateLimited is returned once a session exhausts its refresh budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
