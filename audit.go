package authcore

import (
	"context"

	"github.com/google/uuid"

	internalaudit "github.com/ampara-edu/authcore/internal/audit"
)

// Audit action names. Stable identifiers consumed by log pipelines; renaming
// one breaks downstream filters.
const (
	AuditActionLogin    = "login"
	AuditActionValidate = "validate"
	AuditActionRefresh  = "refresh"
	AuditActionLogout   = "logout"
)

// emitAudit is fire-and-forget: a full buffer or failing sink never delays or
// fails the calling flow.
func (e *Engine) emitAudit(ctx context.Context, action, actor string, success bool, failure error, meta map[string]string) {
	if e.audit == nil {
		return
	}
	event := internalaudit.Event{
		ID:        uuid.NewString(),
		Timestamp: e.now(),
		Action:    action,
		Actor:     actor,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if failure != nil {
		event.Error = Tag(failure)
	}
	e.audit.Emit(ctx, event)
}

// AuditDropped reports how many audit events were dropped because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}
