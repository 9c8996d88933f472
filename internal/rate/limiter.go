package rate

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DisableEnv is the environment kill switch. When set to "1" or "true" every
// limiter decision is an unconditional allow. Meant for incident response and
// load testing, never for steady-state operation.
const DisableEnv = "AUTHCORE_RATE_LIMIT_DISABLED"

// Policy describes one named sliding window.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

// Decision is the outcome of a single limiter check. FailedOpen marks an
// allow that happened only because storage was unreachable.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	FailedOpen bool
}

// Purge, count, compare and admit in one atomic script, so concurrent checks
// against the same key serialize on the ceiling instead of all reading the
// pre-insert count. Replies [1, count-before-admit] on allow and
// [0, oldest-surviving-score] on deny.
const allowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  if oldest[2] then
    return {0, oldest[2]}
  end
  return {0, ARGV[1]}
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return {1, count}
`

var allowLua = redis.NewScript(allowScript)

// Limiter enforces sliding-window policies over Redis sorted sets.
type Limiter struct {
	rdb      redis.UniversalClient
	prefix   string
	disabled bool
	logger   zerolog.Logger
	now      func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for degraded-mode events.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// Disabled forces every decision to allow, same as the env kill switch.
func Disabled(d bool) Option {
	return func(l *Limiter) { l.disabled = d }
}

// New builds a Limiter. prefix namespaces all limiter keys so several
// deployments can share one Redis.
func New(rdb redis.UniversalClient, prefix string, opts ...Option) *Limiter {
	l := &Limiter{
		rdb:    rdb,
		prefix: prefix,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	if v := os.Getenv(DisableEnv); v == "1" || v == "true" {
		l.disabled = true
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether one more request for key fits in the policy window
// and records it when it does. Denied attempts are not recorded, so hammering
// a locked-out key never pushes the reset further out. The whole check runs
// as one Lua call: two callers racing for the last slot see one admit and one
// denial, never two admits.
//
// Redis errors never surface to the caller: the limiter fails open and the
// decision reports Allowed with a full Remaining.
func (l *Limiter) Allow(ctx context.Context, key string, p Policy) Decision {
	now := l.now()
	if l.disabled {
		return Decision{Allowed: true, Remaining: p.MaxRequests, ResetAt: now}
	}

	rkey := l.prefix + ":" + p.Name + ":" + key
	// Half-open boundary: an entry exactly Window old is purged.
	windowStart := now.Add(-p.Window)
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())

	vals, err := allowLua.Run(ctx, l.rdb,
		[]string{rkey},
		now.UnixNano(),
		windowStart.UnixNano(),
		p.MaxRequests,
		member,
		p.Window.Milliseconds(),
	).Slice()
	if err != nil || len(vals) != 2 {
		return l.failOpen(p, now, err)
	}

	admitted, ok := vals[0].(int64)
	if !ok {
		return l.failOpen(p, now, fmt.Errorf("unexpected script reply %v", vals))
	}

	if admitted == 0 {
		resetAt := now.Add(p.Window)
		// Scores are nanosecond timestamps; the window frees when the oldest
		// surviving entry ages out.
		if s, ok := vals[1].(string); ok {
			if score, perr := strconv.ParseFloat(s, 64); perr == nil {
				resetAt = time.Unix(0, int64(score)).Add(p.Window)
			}
		}
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	count, _ := vals[1].(int64)
	return Decision{
		Allowed:   true,
		Remaining: p.MaxRequests - int(count) - 1,
		ResetAt:   now.Add(p.Window),
	}
}

func (l *Limiter) failOpen(p Policy, now time.Time, err error) Decision {
	l.logger.Warn().
		Err(err).
		Str("policy", p.Name).
		Msg("rate limiter storage unavailable, failing open")
	return Decision{Allowed: true, Remaining: p.MaxRequests, ResetAt: now, FailedOpen: true}
}
