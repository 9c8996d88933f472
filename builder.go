package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	internalaudit "github.com/ampara-edu/authcore/internal/audit"
	"github.com/ampara-edu/authcore/internal/rate"
	"github.com/ampara-edu/authcore/password"
	"github.com/ampara-edu/authcore/permission"
	"github.com/ampara-edu/authcore/session"
	"github.com/ampara-edu/authcore/token"
)

// Builder assembles an [Engine]. Chain the With* methods and finish with
// Build; a Builder is single-use.
type Builder struct {
	cfg       Config
	rdb       redis.UniversalClient
	directory Directory
	sink      AuditSink
	logger    zerolog.Logger
	clock     func() time.Time
	err       error
}

// New starts a Builder from [DefaultConfig].
func New() *Builder {
	return &Builder{
		cfg:    DefaultConfig(),
		logger: zerolog.Nop(),
		clock:  time.Now,
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithRedis sets the Redis client backing rate limiting and refresh sessions.
func (b *Builder) WithRedis(rdb redis.UniversalClient) *Builder {
	b.rdb = rdb
	return b
}

// WithDirectory sets the user/role persistence collaborator.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithAuditSink sets where audit events land. Without a sink, events go to a
// [NoOpSink] when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger for degraded-mode and best-effort
// failure events. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source. Tests only.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and wires the engine. Every dependency
// the engine needs must be present: a nil Redis client or Directory is a
// build error, not a runtime panic later.
func (b *Builder) Build() (*Engine, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.rdb == nil {
		return nil, errors.New("authcore: redis client is required")
	}
	if b.directory == nil {
		return nil, errors.New("authcore: directory is required")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  b.cfg.Token.AccessSecret,
		RefreshSecret: b.cfg.Token.RefreshSecret,
		AccessTTL:     b.cfg.Token.AccessTTL,
		RefreshTTL:    b.cfg.Token.RefreshTTL,
		Issuer:        b.cfg.Token.Issuer,
		Audience:      b.cfg.Token.Audience,
		Leeway:        b.cfg.Token.Leeway,
		Clock:         b.clock,
	})
	if err != nil {
		return nil, err
	}

	hasher := password.New(password.Config{
		Memory:      b.cfg.Password.Memory,
		Time:        b.cfg.Password.Time,
		Parallelism: b.cfg.Password.Parallelism,
		SaltLength:  b.cfg.Password.SaltLength,
		KeyLength:   b.cfg.Password.KeyLength,
	})

	limiter := rate.New(b.rdb, b.cfg.RateLimit.RedisPrefix,
		rate.Disabled(b.cfg.RateLimit.Disabled),
		rate.WithLogger(b.logger),
		rate.WithClock(b.clock),
	)

	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    b.cfg.Audit.Enabled,
		BufferSize: b.cfg.Audit.BufferSize,
		DropIfFull: b.cfg.Audit.DropIfFull,
	}, b.sink)

	var metrics *Metrics
	if b.cfg.Metrics.Enabled {
		metrics = NewMetrics()
	}

	return &Engine{
		cfg:       b.cfg,
		directory: b.directory,
		verifier:  newCredentialVerifier(b.directory, hasher),
		tokens:    tokens,
		sessions:  session.NewStore(b.rdb, b.cfg.Session.RedisPrefix),
		limiter:   limiter,
		resolver:  permission.NewResolver(b.directory),
		audit:     dispatcher,
		metrics:   metrics,
		logger:    b.logger,
		now:       b.clock,
	}, nil
}
