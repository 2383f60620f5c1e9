package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
)

// Журналы аудита.
const (
	sinkAccessLog = "access_log"
	sinkEventLog  = "event_log"
)

// AccessLogSink — журнал доступа к документам.
type AccessLogSink interface {
	LogAccess(ctx context.Context, e *model.AccessLogEntry) error
}

// EventSink — общесистемный журнал событий.
type EventSink interface {
	LogEvent(ctx context.Context, eventName string, actorID, subjectID int64, details map[string]any) error
}

// AuditLogger пишет каждое обращение к документу в оба журнала.
// Ошибки журналов логируются и считаются в метриках, но вызывающему
// не возвращаются: к моменту записи основная операция уже завершена.
type AuditLogger struct {
	access AccessLogSink
	events EventSink
	now    func() time.Time
	logger *slog.Logger
}

// NewAuditLogger создаёт логгер аудита.
func NewAuditLogger(access AccessLogSink, events EventSink, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		access: access,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "audit")),
	}
}

// Record записывает обращение accessType к документу documentID.
func (a *AuditLogger) Record(
	ctx context.Context,
	documentID int64,
	accessType model.AccessType,
	actorID int64,
	reason string,
	rc model.RequestContext,
) {
	// Запись аудита не должна обрываться вместе с отменённым запросом.
	ctx = context.WithoutCancel(ctx)

	entry := &model.AccessLogEntry{
		DocumentID: documentID,
		AccessType: accessType,
		ActorID:    actorID,
		Reason:     reason,
		RemoteAddr: rc.RemoteAddr,
		UserAgent:  rc.UserAgent,
		RequestID:  rc.RequestID,
		Success:    true,
		AccessedAt: a.now(),
	}
	a.guard(sinkAccessLog, documentID, accessType, func() error {
		return a.access.LogAccess(ctx, entry)
	})

	details := map[string]any{
		"access_type": string(accessType),
		"reason":      reason,
		"slr_id":      documentID,
		"label":       accessType.Label(),
		"remote_addr": rc.RemoteAddr,
		"user_agent":  rc.UserAgent,
	}
	if rc.RequestID != "" {
		details["request_id"] = rc.RequestID
	}
	a.guard(sinkEventLog, documentID, accessType, func() error {
		return a.events.LogEvent(ctx, accessType.EventName(), actorID, documentID, details)
	})
}

// guard выполняет запись в журнал и поглощает ошибки и паники.
func (a *AuditLogger) guard(sink string, documentID int64, accessType model.AccessType, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			auditFailuresTotal.WithLabelValues(sink).Inc()
			a.logger.Error("Паника при записи аудита",
				slog.String("sink", sink),
				slog.Int64("slr_id", documentID),
				slog.Any("panic", rec),
			)
		}
	}()

	if err := fn(); err != nil {
		auditFailuresTotal.WithLabelValues(sink).Inc()
		a.logger.Warn("Ошибка записи аудита",
			slog.String("sink", sink),
			slog.Int64("slr_id", documentID),
			slog.String("access_type", string(accessType)),
			slog.String("error", err.Error()),
		)
	}
}
