// Package token issues and verifies the JWT pair used by the authentication
// engine: short-lived HS256 access tokens carrying identity and permission
// claims, and long-lived HS256 refresh tokens signed with a separate secret.
//
// # Secret separation
//
// Access and refresh tokens are signed with DISTINCT secrets. A leaked access
// secret must never be enough to mint refresh tokens, and a refresh token
// presented on an access path must fail verification outright, not merely
// fail a claim check. Refresh tokens additionally carry typ="refresh" so an
// access token signed with the refresh secret by mistake still cannot pass a
// refresh check.
//
// # What this package must NOT do
//
//   - Consult session storage. Whether a refresh token is still the live one
//     for its user is the session store's question; this package only answers
//     whether the signature and registered claims hold.
//   - Read the clock directly outside the injected Clock.
package token
