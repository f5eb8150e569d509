package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshHashMismatch is returned when the presented refresh secret is
	// not the current one, typically because it was already rotated.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrSessionNotFound is returned for unknown or deleted sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the session outlived its absolute TTL.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionCorrupt is returned when stored fields can not be decoded.
	ErrSessionCorrupt = errors.New("session corrupt")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const (
	fieldUserID      = "user_id"
	fieldRefreshHash = "refresh_hash"
	fieldRotations   = "rotations"
	fieldCreatedAt   = "created_at"
	fieldExpiresAt   = "expires_at"
)

const rotateRefreshScript = `
local data = redis.call("HMGET", KEYS[1], "user_id", "refresh_hash", "expires_at")
if not data[1] then
  return {0}
end
if tonumber(data[3]) <= tonumber(ARGV[3]) then
  redis.call("DEL", KEYS[1])
  return {1}
end
if data[2] ~= ARGV[1] then
  return {2}
end
redis.call("HSET", KEYS[1], "refresh_hash", ARGV[2])
local rotations = redis.call("HINCRBY", KEYS[1], "rotations", 1)
return {3, rotations}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed refresh-session store with atomic rotation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a session [Store]. prefix sets the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gac"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) replayKey(sessionID string) string {
	return s.prefix + ":rp:" + sessionID
}

// Save persists sess with the given TTL. ExpiresAt is derived from the TTL
// when unset.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.SessionID == "" {
		return errors.New("session: missing session id")
	}
	if ttl <= 0 {
		return errors.New("session: ttl must be positive")
	}

	now := s.now()
	if sess.CreatedAt == 0 {
		sess.CreatedAt = now.Unix()
	}
	if sess.ExpiresAt == 0 {
		sess.ExpiresAt = now.Add(ttl).Unix()
	}

	key := s.key(sess.SessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, sess.UserID,
			fieldRefreshHash, hex.EncodeToString(sess.RefreshHash[:]),
			fieldRotations, sess.Rotations,
			fieldCreatedAt, sess.CreatedAt,
			fieldExpiresAt, sess.ExpiresAt,
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session by ID.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	sess, err := decodeFields(sessionID, fields)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		_ = s.Delete(ctx, sessionID)
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RotateRefreshHash atomically replaces the refresh hash when provided matches
// the stored one and returns the updated session.
func (s *Store) RotateRefreshHash(ctx context.Context, sessionID string, provided, next [32]byte) (*Session, error) {
	res, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		hex.EncodeToString(provided[:]),
		hex.EncodeToString(next[:]),
		s.now().Unix(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return nil, ErrSessionCorrupt
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, ErrSessionCorrupt
	}
	switch status {
	case rotateStatusNotFound:
		return nil, ErrSessionNotFound
	case rotateStatusExpired:
		return nil, ErrSessionExpired
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		return s.Get(ctx, sessionID)
	default:
		return nil, ErrSessionCorrupt
	}
}

// TrackReplayAnomaly counts presentations of an already-rotated secret.
func (s *Store) TrackReplayAnomaly(ctx context.Context, sessionID string, ttl time.Duration) error {
	key := s.replayKey(sessionID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 && ttl > 0 {
		if err := s.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// ReplayAnomalies returns the replay counter for a session.
func (s *Store) ReplayAnomalies(ctx context.Context, sessionID string) (int64, error) {
	n, err := s.redis.Get(ctx, s.replayKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func decodeFields(sessionID string, fields map[string]string) (*Session, error) {
	sess := &Session{
		SessionID: sessionID,
		UserID:    fields[fieldUserID],
	}

	hash, err := hex.DecodeString(fields[fieldRefreshHash])
	if err != nil || len(hash) != len(sess.RefreshHash) {
		return nil, ErrSessionCorrupt
	}
	copy(sess.RefreshHash[:], hash)

	if sess.Rotations, err = parseInt(fields[fieldRotations]); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseInt(fields[fieldCreatedAt]); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = parseInt(fields[fieldExpiresAt]); err != nil {
		return nil, err
	}
	return sess, nil
}

func parseInt(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, ErrSessionCorrupt
	}
	return n, nil
}
