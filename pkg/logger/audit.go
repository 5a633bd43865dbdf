package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventRegister       = "register"
	EventLoginSuccess   = "login_success"
	EventLoginFailed    = "login_failed"
	EventLogout         = "logout"
	EventTokenRefresh   = "token_refresh"
	EventPasswordChange = "password_change"
	EventPasswordReset  = "password_reset"
	EventEmailVerified  = "email_verified"
	EventOAuthLogin     = "oauth_login"
	EventStatusChange   = "status_change"
)

// AuditEvent is a security-relevant action on an account.
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit events as structured log records.
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// Log records event. Failed events are logged at warn level.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// Success logs a successful event for userID.
func (al *AuditLogger) Success(ctx context.Context, eventType, userID, ipAddress string) {
	al.Log(ctx, AuditEvent{EventType: eventType, UserID: userID, IPAddress: ipAddress, Success: true})
}

// Failure logs a failed event. email may be empty.
func (al *AuditLogger) Failure(ctx context.Context, eventType, email, ipAddress, reason string) {
	al.Log(ctx, AuditEvent{EventType: eventType, Email: email, IPAddress: ipAddress, FailureReason: reason})
}
