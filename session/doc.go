// Package session tracks the single live refresh token per user in Redis.
//
// # Storage model
//
// One key per user, holding the hex SHA-256 of the currently valid refresh
// token with a TTL equal to the refresh lifetime. Raw refresh tokens never
// touch Redis: a snapshot or slowlog leak exposes only digests. Issuing a new
// session overwrites the previous one, so at most one refresh token per user
// is ever live.
//
// # Rotation
//
// Rotate is a Lua compare-and-swap: the stored digest is read, compared
// against the presented one, and replaced with the successor in a single
// atomic script. Under concurrent rotation with the same token exactly one
// caller wins; the losers see ErrTokenMismatch and the stored value is left
// untouched so the winner's successor token keeps working.
//
// # What this package must NOT do
//
//   - Verify signatures or expiry. A token reaching this package already
//     passed JWT verification.
//   - Swallow Redis failures. Unlike rate limiting, session state is
//     authoritative and errors propagate as ErrRedisUnavailable.
package session
