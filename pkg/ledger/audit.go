package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEvent is a single durable record of a policy decision or task
// milestone, indexed for query by task, key, kind, and time.
type AuditEvent struct {
	TaskID      string
	APIKey      string
	Timestamp   time.Time
	Kind        string
	Details     map[string]any
	Severity    string
}

// Audit kinds named in the data model.
const (
	AuditToolCall            = "tool_call"
	AuditAgentInvoke         = "agent_invoke"
	AuditSkillInvoke         = "skill_invoke"
	AuditPermissionViolation = "permission_violation"
	AuditRateLimited         = "rate_limited"
	AuditBudgetExceeded      = "budget_exceeded"
	AuditTaskFailed          = "task_failed"
	AuditTaskCompleted       = "task_completed"
	AuditTaskTimedOut        = "task_timed_out"
	AuditTaskCancelled       = "task_cancelled"
	AuditDebitLost           = "debit_lost"
	AuditTaskLogParseFailed  = "task_log_parse_failed"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// WriteAudit appends an audit event. This is the only sink the Ledger
// never allows a caller to skip on a policy decision; RequestFlow writes
// one even when the request was denied.
func (s *Store) WriteAudit(ctx context.Context, ev AuditEvent) error {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("ledger: marshal audit details: %w", err)
	}
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}
	const q = `
		INSERT INTO audit_log (task_id, api_key, kind, details_json, severity)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, q, ev.TaskID, ev.APIKey, ev.Kind, details, ev.Severity); err != nil {
		return storageErr(fmt.Errorf("write audit: %w", err))
	}
	return nil
}

// WriteAuditBestEffort hands a write failure to onErr (if non-nil) instead
// of returning it, for paths such as "debit_lost" where an audit failure
// must not mask the original error being recorded.
func (s *Store) WriteAuditBestEffort(ctx context.Context, ev AuditEvent, onErr func(error)) {
	if err := s.WriteAudit(ctx, ev); err != nil && onErr != nil {
		onErr(err)
	}
}
