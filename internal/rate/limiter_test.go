package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, opts ...Option) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "arl", opts...), mr
}

func TestAllowUpToMax(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := Policy{Name: "auth", Window: time.Minute, MaxRequests: 5}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := l.Allow(ctx, "ip:10.0.0.1", p)
		if !d.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if want := 5 - i - 1; d.Remaining != want {
			t.Fatalf("request %d remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	d := l.Allow(ctx, "ip:10.0.0.1", p)
	if d.Allowed {
		t.Fatal("request 6 allowed, want denied")
	}
	if d.Remaining != 0 {
		t.Fatalf("denied remaining = %d, want 0", d.Remaining)
	}
}

func TestConcurrentAdmissionHonorsCeiling(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := Policy{Name: "auth", Window: time.Minute, MaxRequests: 5}
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	decisions := make([]Decision, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i] = l.Allow(ctx, "ip:10.0.0.1", p)
		}(i)
	}
	wg.Wait()

	var allowed int
	for _, d := range decisions {
		if d.FailedOpen {
			t.Fatal("unexpected fail-open decision")
		}
		if d.Allowed {
			allowed++
		}
	}
	if allowed != p.MaxRequests {
		t.Fatalf("allowed = %d of %d, want exactly %d", allowed, callers, p.MaxRequests)
	}
}

func TestResetAtFromOldestEntry(t *testing.T) {
	base := time.Now()
	now := base
	l, _ := newTestLimiter(t, WithClock(func() time.Time { return now }))
	p := Policy{Name: "auth", Window: time.Minute, MaxRequests: 2}
	ctx := context.Background()

	l.Allow(ctx, "k", p)
	now = base.Add(10 * time.Second)
	l.Allow(ctx, "k", p)
	now = base.Add(20 * time.Second)
	d := l.Allow(ctx, "k", p)
	if d.Allowed {
		t.Fatal("expected denial")
	}
	// Oldest entry at base, so the window frees at base+1m.
	want := base.Add(time.Minute)
	if d.ResetAt.Sub(want) > time.Second || want.Sub(d.ResetAt) > time.Second {
		t.Fatalf("ResetAt = %v, want ~%v", d.ResetAt, want)
	}
}

func TestWindowSlides(t *testing.T) {
	base := time.Now()
	now := base
	l, _ := newTestLimiter(t, WithClock(func() time.Time { return now }))
	p := Policy{Name: "burst", Window: 10 * time.Second, MaxRequests: 2}
	ctx := context.Background()

	l.Allow(ctx, "k", p)
	l.Allow(ctx, "k", p)
	if l.Allow(ctx, "k", p).Allowed {
		t.Fatal("third request inside window allowed")
	}

	// Entries exactly Window old fall out (half-open boundary).
	now = base.Add(10 * time.Second)
	if !l.Allow(ctx, "k", p).Allowed {
		t.Fatal("request after window elapsed denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := Policy{Name: "auth", Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	l.Allow(ctx, "ip:1.1.1.1", p)
	if l.Allow(ctx, "ip:1.1.1.1", p).Allowed {
		t.Fatal("same key not limited")
	}
	if !l.Allow(ctx, "ip:2.2.2.2", p).Allowed {
		t.Fatal("distinct key limited")
	}
}

func TestPoliciesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	auth := Policy{Name: "auth", Window: time.Minute, MaxRequests: 1}
	api := Policy{Name: "api", Window: time.Minute, MaxRequests: 1}

	l.Allow(ctx, "k", auth)
	if l.Allow(ctx, "k", auth).Allowed {
		t.Fatal("auth policy not enforced")
	}
	if !l.Allow(ctx, "k", api).Allowed {
		t.Fatal("api policy shares auth policy's window")
	}
}

func TestFailOpenOnStorageError(t *testing.T) {
	l, mr := newTestLimiter(t)
	p := Policy{Name: "auth", Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	l.Allow(ctx, "k", p)
	mr.Close()

	d := l.Allow(ctx, "k", p)
	if !d.Allowed {
		t.Fatal("limiter failed closed on storage error")
	}
	if d.Remaining != p.MaxRequests {
		t.Fatalf("fail-open remaining = %d, want %d", d.Remaining, p.MaxRequests)
	}
	if !d.FailedOpen {
		t.Fatal("fail-open decision not marked")
	}
}

func TestDisabledBypassesStorage(t *testing.T) {
	l, _ := newTestLimiter(t, Disabled(true))
	p := Policy{Name: "auth", Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if !l.Allow(ctx, "k", p).Allowed {
			t.Fatal("disabled limiter denied a request")
		}
	}
}

func TestDisableEnvKillSwitch(t *testing.T) {
	t.Setenv(DisableEnv, "1")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := New(rdb, "arl")
	p := Policy{Name: "auth", Window: time.Minute, MaxRequests: 1}
	l.Allow(context.Background(), "k", p)
	if !l.Allow(context.Background(), "k", p).Allowed {
		t.Fatal("kill switch ignored")
	}
}
