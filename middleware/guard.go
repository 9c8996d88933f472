package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	authcore "github.com/ampara-edu/authcore"
	"github.com/ampara-edu/authcore/permission"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   authcore.Tag(err),
		Message: authcore.PublicMessage(err),
	})
}

func statusFor(err error) int {
	switch authcore.KindOf(err) {
	case authcore.KindValidation:
		return http.StatusBadRequest
	case authcore.KindAuthentication:
		return http.StatusUnauthorized
	case authcore.KindAuthorization:
		return http.StatusForbidden
	case authcore.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// bearerToken extracts the token from an Authorization header. Scheme match
// is case-insensitive per RFC 9110.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// clientIP takes the remote address without the port. Deployments behind a
// trusted proxy should rewrite RemoteAddr upstream of this middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Guard validates the bearer token on every request and attaches the decoded
// claims to the request context. Requests without a valid token are rejected
// with 401 before the wrapped handler runs.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, authcore.ErrTokenInvalid)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), clientIP(r))
			claims, err := engine.ValidateToken(ctx, raw)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authcore.ContextWithClaims(ctx, claims)))
		})
	}
}

// RequireAll rejects with 403 unless the authenticated principal holds every
// listed permission code. Must run inside [Guard]; a request without claims
// in context is rejected outright.
func RequireAll(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authcore.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusForbidden, authcore.ErrPermissionDenied)
				return
			}
			if !permission.NewSet(claims.Permissions).HasAll(codes...) {
				writeError(w, http.StatusForbidden, authcore.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Throttle gates a handler with one of the engine's rate-limit policies,
// keyed by client IP. Denied requests get 429 with a Retry-After header.
func Throttle(engine *authcore.Engine, name string, p authcore.RateLimitPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := engine.RateLimit(r.Context(), name, "ip:"+clientIP(r), p)
			if !d.Allowed {
				retryAfter := time.Until(d.ResetAt)
				retry := int(retryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, &authcore.RateLimitError{
					RetryAfter: retryAfter,
					ResetAt:    d.ResetAt,
				})
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
