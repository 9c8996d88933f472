// Package rate implements the Redis-backed sliding-window limiter that gates
// the authentication endpoints before any credential work happens.
//
// # Window semantics
//
// True sliding windows over sorted sets, not fixed buckets: each accepted
// request records its timestamp as a ZSET member; on every check, members
// older than now-window are purged and the survivors counted. The boundary is
// half-open on the old side: an entry exactly window old no longer counts.
// ResetAt is derived from the oldest surviving entry plus the window, so
// clients get an accurate retry hint instead of a fixed rollover.
//
// # Failure semantics
//
// When Redis is unavailable the limiter FAILS OPEN: availability of the login
// path takes priority over strict enforcement during storage outages. This is
// a deliberate product decision; changing it to fail-closed is a behavior
// change requiring sign-off. Every fail-open decision is logged as a degraded-
// mode event.
//
// # What this package must NOT do
//
//   - Decide which policy applies to which endpoint (the Engine owns that).
//   - Be imported outside the authcore module.
package rate
