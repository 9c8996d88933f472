package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	authcore "github.com/ampara-edu/authcore"
)

// AuditSink persists audit events to the auth_audit table. It runs on the
// dispatcher goroutine, so a slow insert delays later events but never the
// request path; insert failures are logged and the event is lost.
type AuditSink struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAuditSink wraps a pool. The caller owns the pool's lifecycle.
func NewAuditSink(pool *pgxpool.Pool, logger zerolog.Logger) *AuditSink {
	return &AuditSink{pool: pool, logger: logger}
}

// Emit implements [authcore.AuditSink].
func (s *AuditSink) Emit(ctx context.Context, event authcore.AuditEvent) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_audit (id, ts, action, actor, ip, success, error, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Timestamp, event.Action, event.Actor,
		event.IP, event.Success, event.Error, event.Metadata,
	)
	if err != nil {
		s.logger.Warn().Err(err).Str("action", event.Action).Msg("audit insert failed")
	}
}

var _ authcore.AuditSink = (*AuditSink)(nil)

// Connect is a convenience for wiring: it builds a pool from a DSN and
// verifies connectivity with one ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
