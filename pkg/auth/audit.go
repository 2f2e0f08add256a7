package auth

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// AuditLogger writes security audit events as structured log entries
type AuditLogger struct {
	logger *logrus.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *logrus.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// AuditEvent is a single security relevant action
type AuditEvent struct {
	Action       string
	ResourceType string
	ResourceID   string
	UserID       int64
	Status       string
	Err          error
}

// LogFromRequest records an audit event enriched with request metadata
func (al *AuditLogger) LogFromRequest(r *http.Request, event AuditEvent) {
	fields := logrus.Fields{
		"audit":         true,
		"action":        event.Action,
		"resource_type": event.ResourceType,
		"status":        event.Status,
		"ip_address":    ClientIP(r),
		"user_agent":    r.UserAgent(),
	}
	if event.ResourceID != "" {
		fields["resource_id"] = event.ResourceID
	}
	if event.UserID != 0 {
		fields["user_id"] = event.UserID
	}

	entry := al.logger.WithFields(fields)
	if event.Err != nil {
		entry.WithError(event.Err).Warn("audit event")
		return
	}
	entry.Info("audit event")
}

// ClientIP returns the originating client address of a request
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// first hop is the client
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// Common audit action constants
const (
	ActionTokenCreate = "token.create"
	ActionTokenRevoke = "token.revoke"
	ActionUserCreate  = "user.create"
	ActionUserUpdate  = "user.update"
	ActionUserDelete  = "user.delete"
	ActionAuthFailure = "auth.failure"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
