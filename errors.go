package authcore

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the stable machine-readable classification attached to every error
// the engine returns. Transports map kinds to status codes; the string values
// are part of the wire contract and must not change.
type Kind string

const (
	// KindValidation marks malformed input the caller can correct.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindAuthentication marks bad credentials or tokens. The message is kept
	// uniform across root causes to prevent account enumeration.
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	// KindAuthorization marks an authenticated caller lacking a permission.
	KindAuthorization Kind = "AUTHORIZATION_ERROR"
	// KindRateLimit marks a request rejected by the rate gate; the error
	// carries a retry-after hint.
	KindRateLimit Kind = "RATE_LIMIT_ERROR"
	// KindSystem marks storage or signing infrastructure failure.
	KindSystem Kind = "SYSTEM_ERROR"
)

var (
	// ErrInvalidInput is an exported constant or variable used by the authentication engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned for unknown email, wrong password, and
	// any storage fault during credential verification. One error for all three
	// so responses do not reveal whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is an exported constant or variable used by the authentication engine.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTokenInvalid covers malformed tokens and invalid signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenAudience covers a structurally valid token signed for a different
	// issuer or audience.
	ErrTokenAudience = errors.New("token issuer or audience mismatch")
	// ErrUserInactive is returned by ValidateToken when the token verifies but
	// the referenced user no longer exists or has been deactivated.
	ErrUserInactive = errors.New("user inactive")
	// ErrRefreshInvalid is an exported constant or variable used by the authentication engine.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a refresh token that has already been
	// rotated away is presented again.
	ErrRefreshReuse = errors.New("refresh token already rotated")
	// ErrPermissionDenied is an exported constant or variable used by the authentication engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRateLimited is the sentinel wrapped by [RateLimitError].
	ErrRateLimited = errors.New("rate limited")
	// ErrUserNotFound is returned by [Directory] implementations when no user
	// matches. The engine never surfaces it to callers directly.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("auth storage unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError is returned when the rate gate denies a request. RetryAfter
// and ResetAt are derived from the oldest surviving window entry, so the hint
// is accurate rather than a fixed rollover.
type RateLimitError struct {
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// KindOf classifies any error returned by the engine into its taxonomy kind.
// Unrecognized errors classify as [KindSystem].
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, ErrPermissionDenied):
		return KindAuthorization
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenAudience),
		errors.Is(err, ErrUserInactive),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrRefreshReuse):
		return KindAuthentication
	default:
		return KindSystem
	}
}

// Tag returns the stable machine-readable tag for an engine error.
func Tag(err error) string {
	return string(KindOf(err))
}

// PublicMessage returns the human-readable message safe to expose to clients.
// Internal identifiers and wrapped storage errors are never included.
func PublicMessage(err error) string {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.Error()
	}
	switch KindOf(err) {
	case KindValidation:
		return "invalid input"
	case KindAuthentication:
		if errors.Is(err, ErrAccountInactive) {
			return "account inactive"
		}
		if errors.Is(err, ErrUserInactive) {
			return "user inactive"
		}
		if errors.Is(err, ErrTokenExpired) {
			return "token expired"
		}
		return "invalid credentials or token"
	case KindAuthorization:
		return "insufficient permissions"
	case KindRateLimit:
		return "rate limited"
	default:
		return "internal error"
	}
}
