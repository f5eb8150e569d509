package session

import "time"

// Session is one server-side login: the owner and the hash of the refresh
// secret that is currently valid for it.
type Session struct {
	SessionID   string
	UserID      string
	RefreshHash [32]byte
	// Rotations counts successful refresh rotations.
	Rotations int64

	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the session is past its absolute lifetime at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}
