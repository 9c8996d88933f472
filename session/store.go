package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound means the user has no live refresh session: logged
	// out, expired, or never logged in.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrTokenMismatch means the presented token is not the live one. Either
	// it was already rotated (replay) or another rotation won the race.
	ErrTokenMismatch = errors.New("session: token mismatch")
	// ErrRedisUnavailable wraps any storage failure. Session state is
	// authoritative, so callers must treat this as a hard error.
	ErrRedisUnavailable = errors.New("session: redis unavailable")
)

const (
	rotateNotFound = 0
	rotateMismatch = 1
	rotateOK       = 2
)

// Compare-and-swap: replace the stored digest only when it matches the
// presented one. Mismatch leaves the key untouched so the rotation winner's
// successor token stays valid while losers are rejected.
const rotateScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var rotateLua = redis.NewScript(rotateScript)

// HashToken returns the hex SHA-256 digest under which a refresh token is
// stored. Exported so audit trails can reference a session without holding
// the raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Store is the Redis-backed refresh session registry.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewStore builds a Store. prefix namespaces all session keys.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

// Put records token as the single live refresh session for userID,
// overwriting any previous session.
func (s *Store) Put(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(userID), HashToken(token), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Rotate atomically replaces the live session: if current is the stored
// token, next becomes the live one with a fresh ttl. Exactly one of several
// concurrent calls presenting the same current token succeeds.
func (s *Store) Rotate(ctx context.Context, userID, current, next string, ttl time.Duration) error {
	res, err := rotateLua.Run(ctx, s.rdb,
		[]string{s.key(userID)},
		HashToken(current), HashToken(next), ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch res {
	case rotateNotFound:
		return ErrSessionNotFound
	case rotateMismatch:
		return ErrTokenMismatch
	case rotateOK:
		return nil
	default:
		return fmt.Errorf("%w: unexpected rotate result %d", ErrRedisUnavailable, res)
	}
}

// Invalidate drops the live session for userID. Deleting a missing session
// is not an error; logout is idempotent.
func (s *Store) Invalidate(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Live reports whether token is the current refresh session for userID.
func (s *Store) Live(ctx context.Context, userID, token string) (bool, error) {
	stored, err := s.rdb.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return stored == HashToken(token), nil
}
