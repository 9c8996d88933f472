package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Errors returned by the verify operations. Callers branch on these to pick
// status codes and audit actions; the jwt library's own errors never escape
// this package.
var (
	ErrMalformed  = errors.New("token: malformed or badly signed")
	ErrExpired    = errors.New("token: expired")
	ErrAudience   = errors.New("token: issuer or audience mismatch")
	ErrNotRefresh = errors.New("token: not a refresh token")
)

const refreshType = "refresh"

// Config holds the signing material and claim parameters.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// Clock is the time source for issuance and validation. Defaults to
	// time.Now.
	Clock func() time.Time
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Email       string   `json:"email"`
	GivenName   string   `json:"given_name,omitempty"`
	FamilyName  string   `json:"family_name,omitempty"`
	RoleID      string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies both token kinds.
type Manager struct {
	cfg Config
}

// NewManager validates cfg and builds a Manager. Both secrets must be at
// least 32 bytes and must differ from each other.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < 32 || len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("token: secrets must be at least 32 bytes")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("token: refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{cfg: cfg}, nil
}

// IssueAccess signs an access token for the given subject and claims. The
// permissions slice is embedded as-is; callers pass the resolved, sorted set.
func (m *Manager) IssueAccess(subject string, claims AccessClaims) (string, error) {
	now := m.cfg.Clock()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.cfg.Issuer,
		Audience:  jwt.ClaimStrings{m.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
		ID:        uuid.NewString(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.cfg.AccessSecret)
}

// VerifyAccess checks signature, expiry, issuer and audience and returns the
// decoded claims. Errors are always one of ErrMalformed, ErrExpired or
// ErrAudience.
func (m *Manager) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(raw, claims, m.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueRefresh signs a refresh token for the given subject. Every call
// produces a distinct token: the jti is a fresh UUID.
func (m *Manager) IssueRefresh(subject string) (string, error) {
	now := m.cfg.Clock()
	claims := refreshClaims{
		TokenType: refreshType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.RefreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.cfg.RefreshSecret)
}

// VerifyRefresh checks a refresh token and returns its subject. A token that
// verifies under the refresh secret but lacks typ="refresh" fails with
// ErrNotRefresh.
func (m *Manager) VerifyRefresh(raw string) (string, error) {
	claims := &refreshClaims{}
	if err := m.parse(raw, claims, m.cfg.RefreshSecret); err != nil {
		return "", err
	}
	if claims.TokenType != refreshType {
		return "", ErrNotRefresh
	}
	return claims.Subject, nil
}

// DecodeUnverified extracts the subject from a token WITHOUT verifying the
// signature or expiry. Used only on the logout path, where an expired access
// token must still identify whose session to drop. Never use the result for
// an authorization decision.
func (m *Manager) DecodeUnverified(raw string) (string, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.cfg.Clock),
	}
	if m.cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.cfg.Leeway))
	}

	tok, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	switch {
	case err == nil && tok.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	default:
		return ErrMalformed
	}
}
