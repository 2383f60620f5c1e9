package model

import "time"

// AccessLogEntry — запись журнала доступа к документу (slr_access_log).
// Только добавляется, не изменяется.
type AccessLogEntry struct {
	ID           int64
	DocumentID   int64
	AccessType   AccessType
	ActorID      int64
	Reason       string
	RemoteAddr   string
	UserAgent    string
	RequestID    string
	Success      bool
	ErrorMessage string
	AccessedAt   time.Time
}

// AuditEvent — событие общесистемного журнала (transaction_logs).
type AuditEvent struct {
	ID         int64
	EntityType string
	EntityID   int64
	Action     string
	ActorID    int64
	Details    map[string]any
	CreatedAt  time.Time
}
