package ports

import (
	"context"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// AuditSink records moderation and limiter decisions. Append-only: the core
// exposes no query surface over audit records.
type AuditSink interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
}
