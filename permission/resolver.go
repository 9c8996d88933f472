package permission

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Source answers which permission codes a role grants. The Postgres
// implementation lives in the postgres package; tests use in-memory maps.
type Source interface {
	RoleModules(ctx context.Context, roleID string) ([]string, error)
}

// Resolver turns role IDs into normalized permission sets.
type Resolver struct {
	source Source
}

// NewResolver builds a Resolver over the given source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the permission codes granted to roleID: sorted,
// deduplicated, blanks dropped, never nil. An unknown role resolves to an
// empty set, not an error; the account simply cannot reach anything guarded.
func (r *Resolver) Resolve(ctx context.Context, roleID string) ([]string, error) {
	raw, err := r.source.RoleModules(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("permission: resolve role %s: %w", roleID, err)
	}
	return Normalize(raw), nil
}

// Normalize sorts, deduplicates and trims a permission list. The result is
// never nil.
func Normalize(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Set supports membership checks over a resolved permission list.
type Set map[string]struct{}

// NewSet builds a Set from a permission list.
func NewSet(codes []string) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether code is in the set. Exact match only.
func (s Set) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// HasAll reports whether every code is in the set. An empty requirement is
// trivially satisfied.
func (s Set) HasAll(codes ...string) bool {
	for _, c := range codes {
		if !s.Has(c) {
			return false
		}
	}
	return true
}
