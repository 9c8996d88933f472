package token

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		AccessSecret:  []byte("access-secret-0123456789-0123456789"),
		RefreshSecret: []byte("refresh-secret-0123456789-012345678"),
		AccessTTL:     4 * time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "ampara-auth",
		Audience:      "ampara-api",
	}
}

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short access secret", func(c *Config) { c.AccessSecret = []byte("short") }},
		{"short refresh secret", func(c *Config) { c.RefreshSecret = []byte("short") }},
		{"equal secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"refresh not longer than access", func(c *Config) { c.RefreshTTL = c.AccessTTL }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"excessive leeway", func(c *Config) { c.Leeway = 3 * time.Minute }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("NewManager accepted invalid config")
			}
		})
	}
}

func TestAccessRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	raw, err := m.IssueAccess("user-1", AccessClaims{
		Email:       "alice@example.com",
		GivenName:   "Alice",
		RoleID:      "social_worker",
		Permissions: []string{"FICHAS_READ", "FICHAS_WRITE"},
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	claims, err := m.VerifyAccess(raw)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "alice@example.com" {
		t.Fatalf("identity claims lost: %+v", claims)
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "FICHAS_READ" {
		t.Fatalf("permissions lost: %v", claims.Permissions)
	}
	if claims.ID == "" {
		t.Fatal("missing jti")
	}
}

func TestVerifyAccessErrors(t *testing.T) {
	m := newTestManager(t, nil)
	raw, _ := m.IssueAccess("user-1", AccessClaims{RoleID: "r"})

	t.Run("garbage", func(t *testing.T) {
		if _, err := m.VerifyAccess("not.a.jwt"); !errors.Is(err, ErrMalformed) {
			t.Fatalf("err = %v, want ErrMalformed", err)
		}
	})

	t.Run("tampered", func(t *testing.T) {
		if _, err := m.VerifyAccess(raw + "x"); !errors.Is(err, ErrMalformed) {
			t.Fatalf("err = %v, want ErrMalformed", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := newTestManager(t, func(c *Config) {
			c.AccessSecret = []byte("another-access-secret-0123456789-01")
		})
		if _, err := other.VerifyAccess(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("err = %v, want ErrMalformed", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-24 * time.Hour)
		issuer := newTestManager(t, func(c *Config) {
			c.Clock = func() time.Time { return past }
		})
		stale, _ := issuer.IssueAccess("user-1", AccessClaims{RoleID: "r"})
		if _, err := m.VerifyAccess(stale); !errors.Is(err, ErrExpired) {
			t.Fatalf("err = %v, want ErrExpired", err)
		}
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := newTestManager(t, func(c *Config) { c.Audience = "other-api" })
		foreign, _ := other.IssueAccess("user-1", AccessClaims{RoleID: "r"})
		if _, err := m.VerifyAccess(foreign); !errors.Is(err, ErrAudience) {
			t.Fatalf("err = %v, want ErrAudience", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := newTestManager(t, func(c *Config) { c.Issuer = "other-auth" })
		foreign, _ := other.IssueAccess("user-1", AccessClaims{RoleID: "r"})
		if _, err := m.VerifyAccess(foreign); !errors.Is(err, ErrAudience) {
			t.Fatalf("err = %v, want ErrAudience", err)
		}
	})
}

func TestRefreshRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	raw, err := m.IssueRefresh("user-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	sub, err := m.VerifyRefresh(raw)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("subject = %q, want user-1", sub)
	}
}

func TestRefreshTokensAreUnique(t *testing.T) {
	m := newTestManager(t, nil)
	r1, _ := m.IssueRefresh("user-1")
	r2, _ := m.IssueRefresh("user-1")
	if r1 == r2 {
		t.Fatal("two refresh tokens for the same user are identical")
	}
}

func TestTokenKindsDoNotCross(t *testing.T) {
	m := newTestManager(t, nil)
	access, _ := m.IssueAccess("user-1", AccessClaims{RoleID: "r"})
	refresh, _ := m.IssueRefresh("user-1")

	// Different secrets: each kind fails the other's verification.
	if _, err := m.VerifyAccess(refresh); !errors.Is(err, ErrMalformed) {
		t.Fatalf("refresh token passed access verification: %v", err)
	}
	if _, err := m.VerifyRefresh(access); !errors.Is(err, ErrMalformed) {
		t.Fatalf("access token passed refresh verification: %v", err)
	}
}

func TestDecodeUnverified(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	issuer := newTestManager(t, func(c *Config) {
		c.Clock = func() time.Time { return past }
	})
	stale, _ := issuer.IssueAccess("user-1", AccessClaims{RoleID: "r"})

	m := newTestManager(t, nil)
	if _, err := m.VerifyAccess(stale); !errors.Is(err, ErrExpired) {
		t.Fatalf("precondition: token should be expired, got %v", err)
	}
	sub, err := m.DecodeUnverified(stale)
	if err != nil {
		t.Fatalf("DecodeUnverified: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("subject = %q, want user-1", sub)
	}

	if _, err := m.DecodeUnverified("garbage"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestLeewayToleratesSkew(t *testing.T) {
	issued := time.Now()
	issuer := newTestManager(t, func(c *Config) {
		c.Clock = func() time.Time { return issued }
	})
	raw, _ := issuer.IssueAccess("user-1", AccessClaims{RoleID: "r"})

	// Verifier clock 20s past expiry, within the 30s leeway.
	verifier := newTestManager(t, func(c *Config) {
		c.Leeway = 30 * time.Second
		c.Clock = func() time.Time { return issued.Add(4*time.Hour + 20*time.Second) }
	})
	if _, err := verifier.VerifyAccess(raw); err != nil {
		t.Fatalf("token inside leeway rejected: %v", err)
	}
}
