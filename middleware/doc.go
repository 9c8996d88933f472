// Package middleware adapts the authentication engine to net/http handler
// chains: bearer-token validation, permission checks, and endpoint
// throttling.
//
// Guard authenticates; RequireAll authorizes. They compose in that order:
// RequireAll reads the claims Guard attached to the request context and
// rejects with 403 when no claims are present.
//
// Error responses are JSON with the engine's stable error tags:
//
//	{"error":"AUTHENTICATION_ERROR","message":"token expired"}
//
// Rate-limited responses additionally carry a Retry-After header.
package middleware
