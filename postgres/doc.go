// Package postgres backs the engine's Directory interface and the Postgres
// audit sink with pgx. Every call is bounded by its own statement timeout so
// a stalled database turns into an error, not a hung login.
//
// Expected schema:
//
//	users(id, email, given_name, family_name, password_hash, active, role_id, last_login_at)
//	roles(id, name)
//	role_modules(role_id, module_code)
//	auth_audit(id, ts, action, actor, ip, success, error, metadata)
package postgres
