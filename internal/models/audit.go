package models

import "time"

// Audit actions recorded by the service.
const (
	AuditActionLogin      = "auth.login"
	AuditActionDecision   = "submission.decision"
	AuditActionHardDelete = "submission.hard_delete"
	AuditActionPDFUpload  = "submission.pdf_upload"
)

// AuditLog records privileged actions for traceability.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
