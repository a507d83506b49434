package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/beacon/internal/tracing"
)

// Audit event types
const (
	AuditSecurity = "security"
	AuditSharing  = "sharing"
)

// Audit statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// AuditEvent is one line of the audit log
type AuditEvent struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"`   // user id, or email before login
	Action    string         `json:"action"`            // e.g. "login", "allow_viewer"
	Subject   string         `json:"subject,omitempty"` // the other user affected, if any
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   io.Closer
}

var auditInst atomic.Pointer[AuditLogger]

// NewAuditLogger writes events to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w),
	}
}

// OpenAuditLog appends events to the file at path
func OpenAuditLog(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	a := NewAuditLogger(file)
	a.file = file
	return a, nil
}

// GetAuditLogger returns the global audit logger. Events are discarded until
// one is installed.
func GetAuditLogger() *AuditLogger {
	if a := auditInst.Load(); a != nil {
		return a
	}
	auditInst.CompareAndSwap(nil, NewAuditLogger(io.Discard))
	return auditInst.Load()
}

// SetAuditLogger installs a as the global audit logger and returns the
// previous one
func SetAuditLogger(a *AuditLogger) *AuditLogger {
	return auditInst.Swap(a)
}

// InitAuditLogger installs a global audit logger appending to path
func InitAuditLogger(path string) error {
	a, err := OpenAuditLog(path)
	if err != nil {
		return err
	}
	if prev := SetAuditLogger(a); prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Record emits an audit event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = tracing.GetRequestID(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("event_type", event.Type).
		Time("timestamp", event.Timestamp).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.Subject != "" {
		entry.Str("subject", event.Subject)
	}
	if event.RequestID != "" {
		entry.Str("request_id", event.RequestID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit log file, if any
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// RecordSecurityAudit records a registration, login or push channel auth
func RecordSecurityAudit(ctx context.Context, action, actor, status string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     AuditSecurity,
		Actor:    actor,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordSharingAudit records a change to who may see actor's position
func RecordSharingAudit(ctx context.Context, action, actor, subject string) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:    AuditSharing,
		Actor:   actor,
		Action:  action,
		Subject: subject,
		Status:  StatusSuccess,
	})
}
