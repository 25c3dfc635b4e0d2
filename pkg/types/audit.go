package types

import "time"

type AuditAction string

const (
	AuditActionUpload       AuditAction = "UPLOAD"
	AuditActionGenerateLink AuditAction = "GENERATE_LINK"
	AuditActionDownload     AuditAction = "DOWNLOAD"
	AuditActionDelete       AuditAction = "DELETE"
	AuditActionAccessDenied AuditAction = "ACCESS_DENIED"
)

const ResourceTypeStatement = "ACCOUNT_STATEMENT"

// AuditLog is an append-only record of one security-relevant action. Rows are
// never updated or deleted by the application. CustomerID is nil when the
// actor could not be attributed.
type AuditLog struct {
	ID           string      `db:"id"`
	CustomerID   *string     `db:"customer_id"`
	Action       AuditAction `db:"action"`
	ResourceType string      `db:"resource_type"`
	ResourceID   *string     `db:"resource_id"`
	IPAddress    string      `db:"ip_address"`
	UserAgent    *string     `db:"user_agent"`
	Details      string      `db:"details"`
	OccurredAt   time.Time   `db:"occurred_at"`
}
