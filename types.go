package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/ampara-edu/authcore/internal/audit"
)

// UserRecord is the account record returned by [Directory]. PasswordHash is
// consumed during credential verification and stripped before the record is
// handed to any other component.
type UserRecord struct {
	ID           string
	Email        string
	GivenName    string
	FamilyName   string
	PasswordHash string
	Active       bool
	RoleID       string
	RoleName     string
	LastLoginAt  time.Time
}

// Directory is the persistence collaborator the engine consumes. Implementations
// must bound every call with their own storage timeout; the engine translates
// any returned error into its taxonomy and never surfaces raw storage faults.
//
// Lookups that match no row return [ErrUserNotFound]. FindUserByEmail returns
// inactive users as well; the verifier needs the record to distinguish
// "account inactive" from "unknown account" internally, even though both map
// to the same caller-visible kind.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindUserByID(ctx context.Context, id string) (*UserRecord, error)
	RoleModules(ctx context.Context, roleID string) ([]string, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// AuthResult is returned by [Engine.Authenticate].
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         UserInfo
	Permissions  []string
}

// UserInfo is the caller-facing slice of a [UserRecord]: no password digest,
// no active flag.
type UserInfo struct {
	ID         string
	Email      string
	GivenName  string
	FamilyName string
	RoleID     string
	RoleName   string
}

// RefreshResult is returned by [Engine.Refresh].
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Claims is the decoded access-token payload returned by [Engine.ValidateToken].
// Permissions are the snapshot taken at issuance; a role edit is only reflected
// after the next login or refresh.
type Claims struct {
	UserID      string
	Email       string
	GivenName   string
	FamilyName  string
	RoleID      string
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
// Implementations must never block for long; slow sinks only cost dropped
// events, never caller latency.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
