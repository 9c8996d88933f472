// Package authcore provides the authentication and authorization engine for the
// AMPARA record-management platform: credential verification, JWT access tokens,
// rotating refresh tokens backed by Redis, permission derivation from role→module
// assignments, and sliding-window rate limiting on the login path.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// error taxonomy, and value types (AuthResult, Claims, Decision). Rate limiting
// and audit dispatch live under internal/ and are never exported. Persistence is
// consumed through the [Directory] interface;
// callers plug in their own store or use the pgx-backed one in the postgres
// subpackage.
//
// # What this package must NOT do
//
//   - Expose Redis clients, raw storage errors, or password digests in its
//     public API or in returned values.
//   - Read configuration from ambient process globals inside business logic;
//     all settings arrive through [Config], constructed once at startup.
//   - Block callers on audit delivery. Audit is fire-and-forget.
package authcore
