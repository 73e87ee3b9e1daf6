package model

import "time"

// AuditEventType identifies the type of auditable event.
type AuditEventType string

const (
	EventTypeVerifyPassed AuditEventType = "verify_passed"
	EventTypeVerifyFailed AuditEventType = "verify_failed"
	EventTypeTokenSigned  AuditEventType = "token_signed"
)

// AuditRecord is a single line in the audit log (JSONL format).
type AuditRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	BaseArchive string         `json:"base_archive,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	PrevHash    HashValue      `json:"prev_hash"`
	RecordHash  HashValue      `json:"record_hash"`
}
