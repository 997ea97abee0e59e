package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditAuthFailure     AuditEvent = "auth_failure"
	AuditAuthRateLimited AuditEvent = "auth_rate_limited"
	AuditFileUploaded    AuditEvent = "file_uploaded"
	AuditFileUpdated     AuditEvent = "file_updated"
	AuditFileDeleted     AuditEvent = "file_deleted"
	AuditFileDownloaded  AuditEvent = "file_downloaded"
	AuditRecordCreated   AuditEvent = "record_created"
	AuditRecordUpdated   AuditEvent = "record_updated"
	AuditRecordDeleted   AuditEvent = "record_deleted"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
	now     func() time.Time
}

func newAuditLogger(logger *slog.Logger, now func() time.Time) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
		now:    now,
	}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
}

// logTarget is a convenience for events about one file or record.
func (al *auditLogger) logTarget(event AuditEvent, r *http.Request, kind, id string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("kind", kind),
		slog.String("id", id),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a rejected request.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// alert is the default AlertFunc.
func (al *auditLogger) alert(e AlertEvent) {
	al.logger.Warn("anomaly detected",
		slog.String("alert", string(e.Type)),
		slog.String("message", e.Message),
		slog.Int("count", e.Count),
		slog.Int("threshold", e.Threshold))
}
