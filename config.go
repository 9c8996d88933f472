package authcore

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config defines every tunable of the engine. It is constructed once at
// startup, validated by [Builder.Build], and treated as immutable afterwards;
// business logic never reads from ambient process globals.
type Config struct {
	Token     TokenConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig holds signing secrets and expiry policy. Access and refresh
// tokens use separate secrets so compromise of one does not compromise the
// other; Validate rejects configs where they match.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// PasswordConfig holds argon2id cost parameters: Memory in KiB, Time in
// iterations. UpgradeOnLogin rehashes stored digests that were produced with
// weaker parameters, best-effort, on successful login.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// RateLimitPolicy is a named sliding window: at most MaxRequests within any
// interval of length Window.
type RateLimitPolicy struct {
	Window      time.Duration
	MaxRequests int
}

// RateLimitConfig carries the three named policies plus the environment-level
// kill switch. Disabled turns all limiting off without code changes; it is
// meant for controlled test environments only.
type RateLimitConfig struct {
	Disabled    bool
	RedisPrefix string
	Auth        RateLimitPolicy
	API         RateLimitPolicy
	Burst       RateLimitPolicy
}

// SessionConfig controls the refresh-session store.
type SessionConfig struct {
	RedisPrefix string
}

// AuditConfig controls dispatcher buffering behavior.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration. Secrets are intentionally
// empty and must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  4 * time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "ampara-auth",
			Audience:   "ampara-api",
			Leeway:     30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		RateLimit: RateLimitConfig{
			RedisPrefix: "arl",
			Auth:        RateLimitPolicy{Window: 15 * time.Minute, MaxRequests: 5},
			API:         RateLimitPolicy{Window: time.Minute, MaxRequests: 60},
			Burst:       RateLimitPolicy{Window: 10 * time.Second, MaxRequests: 30},
		},
		Session: SessionConfig{
			RedisPrefix: "ars",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// ConfigFromEnv loads Config overrides from AUTHCORE_* environment variables
// on top of [DefaultConfig]. Durations use Go syntax ("4h", "15m"). Secrets
// come from AUTHCORE_ACCESS_SECRET and AUTHCORE_REFRESH_SECRET.
func ConfigFromEnv() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()

	cfg.Token.AccessSecret = []byte(v.GetString("access_secret"))
	cfg.Token.RefreshSecret = []byte(v.GetString("refresh_secret"))
	if d := v.GetDuration("access_ttl"); d > 0 {
		cfg.Token.AccessTTL = d
	}
	if d := v.GetDuration("refresh_ttl"); d > 0 {
		cfg.Token.RefreshTTL = d
	}
	if s := v.GetString("issuer"); s != "" {
		cfg.Token.Issuer = s
	}
	if s := v.GetString("audience"); s != "" {
		cfg.Token.Audience = s
	}

	cfg.RateLimit.Disabled = v.GetBool("rate_limit_disabled")
	if d := v.GetDuration("rate_limit_auth_window"); d > 0 {
		cfg.RateLimit.Auth.Window = d
	}
	if n := v.GetInt("rate_limit_auth_max"); n > 0 {
		cfg.RateLimit.Auth.MaxRequests = n
	}

	if n := v.GetUint32("password_memory_kb"); n > 0 {
		cfg.Password.Memory = n
	}
	if n := v.GetUint32("password_time"); n > 0 {
		cfg.Password.Time = n
	}

	return cfg, cfg.Validate()
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c Config) Validate() error {
	if len(c.Token.AccessSecret) < 32 {
		return errors.New("access secret must be at least 32 bytes")
	}
	if len(c.Token.RefreshSecret) < 32 {
		return errors.New("refresh secret must be at least 32 bytes")
	}
	if bytes.Equal(c.Token.AccessSecret, c.Token.RefreshSecret) {
		return errors.New("access and refresh secrets must differ")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if !c.RateLimit.Disabled {
		for _, p := range []RateLimitPolicy{c.RateLimit.Auth, c.RateLimit.API, c.RateLimit.Burst} {
			if p.Window <= 0 || p.MaxRequests <= 0 {
				return errors.New("rate limit policies require positive window and ceiling")
			}
		}
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix must not be empty")
	}
	return nil
}
