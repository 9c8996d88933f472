package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/ampara-edu/authcore/internal/audit"
	"github.com/ampara-edu/authcore/internal/rate"
	"github.com/ampara-edu/authcore/permission"
	"github.com/ampara-edu/authcore/session"
	"github.com/ampara-edu/authcore/token"
)

// Engine is the authentication gateway: the single entry point applications
// call for login, token validation, refresh and logout. Construct one with
// [New] and its builder options; the zero value is not usable.
//
// All methods are safe for concurrent use.
type Engine struct {
	cfg       Config
	directory Directory
	verifier  *credentialVerifier
	tokens    *token.Manager
	sessions  *session.Store
	limiter   *rate.Limiter
	resolver  *permission.Resolver
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// Authenticate verifies an email/password pair and, on success, issues an
// access/refresh token pair and records the refresh session. The flow is
// strictly ordered: the rate gate runs before any credential work, and the
// session write completes before any token leaves this method, so a returned
// refresh token is always immediately usable.
//
// Failures keep one shape regardless of cause: unknown email, wrong password
// and directory faults all return [ErrInvalidCredentials].
func (e *Engine) Authenticate(ctx context.Context, email, plain string) (*AuthResult, error) {
	key := e.loginRateKey(ctx, email)
	decision := e.limiter.Allow(ctx, key, e.ratePolicy("auth", e.cfg.RateLimit.Auth))
	if decision.FailedOpen {
		e.metrics.Inc(MetricRateLimitFailOpen)
	}
	if !decision.Allowed {
		e.metrics.Inc(MetricLoginRateLimited)
		err := e.rateLimitError(decision)
		e.emitAudit(ctx, AuditActionLogin, normalizeEmail(email), false, err, nil)
		return nil, err
	}

	user, err := e.verifier.verify(ctx, email, plain)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditActionLogin, normalizeEmail(email), false, err, nil)
		return nil, err
	}

	perms, err := e.resolver.Resolve(ctx, user.RoleID)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditActionLogin, user.ID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, err := e.tokens.IssueAccess(user.ID, token.AccessClaims{
		Email:       user.Email,
		GivenName:   user.GivenName,
		FamilyName:  user.FamilyName,
		RoleID:      user.RoleID,
		Permissions: perms,
	})
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditActionLogin, user.ID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: sign access token: %v", ErrStoreUnavailable, err)
	}
	refresh, err := e.tokens.IssueRefresh(user.ID)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditActionLogin, user.ID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: sign refresh token: %v", ErrStoreUnavailable, err)
	}

	// Session write before the tokens leave this method. Overwrites any
	// previous session: one live refresh token per user.
	if err := e.sessions.Put(ctx, user.ID, refresh, e.cfg.Token.RefreshTTL); err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditActionLogin, user.ID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Best-effort bookkeeping after the point of no return.
	if err := e.directory.UpdateLastLogin(ctx, user.ID, e.now()); err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("last-login update failed")
	}
	if e.cfg.Password.UpgradeOnLogin {
		if err := e.verifier.maybeUpgradeHash(ctx, user, plain); err != nil {
			e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("password hash upgrade failed")
		}
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditActionLogin, user.ID, true, nil, map[string]string{"role": user.RoleID})

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User: UserInfo{
			ID:         user.ID,
			Email:      user.Email,
			GivenName:  user.GivenName,
			FamilyName: user.FamilyName,
			RoleID:     user.RoleID,
			RoleName:   user.RoleName,
		},
		Permissions: perms,
	}, nil
}

// ValidateToken verifies an access token and confirms the account behind it
// is still active. Permissions in the returned claims are the snapshot taken
// at issuance; a role edit shows up after the next login or refresh, but a
// deactivation takes effect here immediately.
func (e *Engine) ValidateToken(ctx context.Context, raw string) (*Claims, error) {
	ac, err := e.tokens.VerifyAccess(raw)
	if err != nil {
		err = mapTokenError(err)
		e.metrics.Inc(MetricValidateFailure)
		e.emitAudit(ctx, AuditActionValidate, "", false, err, nil)
		return nil, err
	}

	user, err := e.directory.FindUserByID(ctx, ac.Subject)
	switch {
	case errors.Is(err, ErrUserNotFound):
		e.metrics.Inc(MetricValidateFailure)
		e.emitAudit(ctx, AuditActionValidate, ac.Subject, false, ErrUserInactive, nil)
		return nil, ErrUserInactive
	case err != nil:
		e.metrics.Inc(MetricValidateFailure)
		e.emitAudit(ctx, AuditActionValidate, ac.Subject, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case !user.Active:
		e.metrics.Inc(MetricValidateFailure)
		e.emitAudit(ctx, AuditActionValidate, ac.Subject, false, ErrUserInactive, nil)
		return nil, ErrUserInactive
	}

	e.metrics.Inc(MetricValidateSuccess)
	return &Claims{
		UserID:      ac.Subject,
		Email:       ac.Email,
		GivenName:   ac.GivenName,
		FamilyName:  ac.FamilyName,
		RoleID:      ac.RoleID,
		Permissions: permission.Normalize(ac.Permissions),
		IssuedAt:    ac.IssuedAt.Time,
		ExpiresAt:   ac.ExpiresAt.Time,
	}, nil
}

// Refresh rotates a refresh token: the presented token is atomically retired
// and a new access/refresh pair issued. Presenting an already-rotated token
// returns [ErrRefreshReuse]; the live successor keeps working, so a client
// that raced itself recovers without a new login. Permissions are re-resolved
// from the directory, picking up role edits.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	userID, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		err = mapRefreshError(err)
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, "", false, err, nil)
		return nil, err
	}

	user, err := e.directory.FindUserByID(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrUserInactive, nil)
		return nil, ErrUserInactive
	case err != nil:
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case !user.Active:
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrUserInactive, nil)
		return nil, ErrUserInactive
	}

	// Resolve and sign before touching the session: a fault here must leave
	// the presented token unconsumed so the caller can simply retry. Rotation
	// is the last step before the pair is returned.
	perms, err := e.resolver.Resolve(ctx, user.RoleID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	access, err := e.tokens.IssueAccess(userID, token.AccessClaims{
		Email:       user.Email,
		GivenName:   user.GivenName,
		FamilyName:  user.FamilyName,
		RoleID:      user.RoleID,
		Permissions: perms,
	})
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: sign access token: %v", ErrStoreUnavailable, err)
	}
	next, err := e.tokens.IssueRefresh(userID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: sign refresh token: %v", ErrStoreUnavailable, err)
	}

	err = e.sessions.Rotate(ctx, userID, refreshToken, next, e.cfg.Token.RefreshTTL)
	switch {
	case errors.Is(err, session.ErrTokenMismatch):
		e.metrics.Inc(MetricRefreshReplay)
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrRefreshReuse, nil)
		return nil, ErrRefreshReuse
	case errors.Is(err, session.ErrSessionNotFound):
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	case err != nil:
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditActionRefresh, userID, false, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditActionRefresh, userID, true, nil, nil)

	return &RefreshResult{AccessToken: access, RefreshToken: next}, nil
}

// Logout drops the caller's refresh session. The access token is decoded
// WITHOUT verification: an expired token must still log its holder out, and
// the only thing taken from it is whose session to invalidate. Logout never
// fails: a garbage token or an unreachable store leaves the caller logged out
// as far as it can tell, and the condition is logged server-side.
func (e *Engine) Logout(ctx context.Context, accessToken string) {
	userID, err := e.tokens.DecodeUnverified(accessToken)
	if err != nil || userID == "" {
		e.emitAudit(ctx, AuditActionLogout, "", false, ErrTokenInvalid, nil)
		return
	}
	if err := e.sessions.Invalidate(ctx, userID); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("logout session invalidation failed")
		e.emitAudit(ctx, AuditActionLogout, userID, false, ErrStoreUnavailable, nil)
		return
	}
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, AuditActionLogout, userID, true, nil, nil)
}

// RateLimit runs one check of the named policy against key. Used by
// [middleware.Throttle] to gate arbitrary endpoints with the engine's
// limiter; the login path calls it implicitly through Authenticate.
func (e *Engine) RateLimit(ctx context.Context, name, key string, p RateLimitPolicy) Decision {
	d := e.limiter.Allow(ctx, key, e.ratePolicy(name, p))
	if d.FailedOpen {
		e.metrics.Inc(MetricRateLimitFailOpen)
	}
	return Decision{Allowed: d.Allowed, Remaining: d.Remaining, ResetAt: d.ResetAt}
}

// Config returns a copy of the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// MetricsSnapshot returns a point-in-time copy of the engine counters plus
// the count of dropped audit events.
func (e *Engine) MetricsSnapshot() map[string]uint64 {
	snap := e.metrics.Snapshot()
	snap["audit_dropped"] = e.AuditDropped()
	return snap
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	e.audit.Close()
}

// loginRateKey picks the bucket the login attempt counts against: client IP
// when the transport provided one, otherwise the normalized email.
func (e *Engine) loginRateKey(ctx context.Context, email string) string {
	if ip := ClientIPFromContext(ctx); ip != "" {
		return "ip:" + ip
	}
	return "email:" + normalizeEmail(email)
}

func (e *Engine) ratePolicy(name string, p RateLimitPolicy) rate.Policy {
	return rate.Policy{Name: name, Window: p.Window, MaxRequests: p.MaxRequests}
}

func (e *Engine) rateLimitError(d rate.Decision) error {
	retry := d.ResetAt.Sub(e.now())
	if retry < 0 {
		retry = 0
	}
	return &RateLimitError{RetryAfter: retry, ResetAt: d.ResetAt}
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrAudience):
		return ErrTokenAudience
	default:
		return ErrTokenInvalid
	}
}

func mapRefreshError(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrRefreshInvalid
}
