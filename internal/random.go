package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	refreshSecretSize   = 32
	refreshTokenRawSize = 16 + refreshSecretSize
)

// RefreshSecret is the random half of an opaque refresh token. Only its
// SHA-256 hash is persisted.
type RefreshSecret [refreshSecretSize]byte

// ErrMalformedRefreshToken is returned for tokens that do not decode to a
// session ID and secret.
var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// NewSessionID returns a random UUIDv4 session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret RefreshSecret) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs the session UUID and secret into a base64url
// cookie value.
func EncodeRefreshToken(sessionID string, secret RefreshSecret) (string, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:16], sid[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeRefreshToken(token string) (string, RefreshSecret, error) {
	var secret RefreshSecret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenRawSize {
		return "", secret, ErrMalformedRefreshToken
	}

	sid, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return "", secret, ErrMalformedRefreshToken
	}
	copy(secret[:], raw[16:])

	return sid.String(), secret, nil
}
