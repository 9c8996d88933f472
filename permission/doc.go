// Package permission resolves a user's role into the set of module
// permission codes embedded in access tokens and checked by the middleware
// guards.
//
// Permissions are flat string codes (FICHAS_READ, USERS_WRITE, ...) granted
// per role. There is no hierarchy and no implication between codes: WRITE
// does not include READ. Resolution normalizes whatever the backing store
// returns into a sorted, deduplicated, never-nil slice so token payloads are
// deterministic and JSON always renders an array.
package permission
