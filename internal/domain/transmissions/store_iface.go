package transmissions

import (
	"context"

	"kpiconsole/internal/domain/kpi"
)

type StoreAPI interface {
	AppendPending(ctx context.Context, t kpi.Transmission) error
	// TakePending removes the transmission atomically. found is false when
	// another caller already removed it.
	TakePending(ctx context.Context, id string) (t kpi.Transmission, found bool, err error)
	// RestorePending puts a taken transmission back in submission order.
	RestorePending(ctx context.Context, t kpi.Transmission) error
	Pending(ctx context.Context) ([]kpi.Transmission, error)
	SetValidated(ctx context.Context, userID string, stats kpi.SystemStats) error
	Validated(ctx context.Context, userID string) (kpi.SystemStats, bool, error)
	AllValidated(ctx context.Context) (map[string]kpi.SystemStats, error)
	PushHistory(ctx context.Context, userID string, t kpi.Transmission) error
	History(ctx context.Context, userID string) ([]kpi.Transmission, error)
	PurgeUser(ctx context.Context, userID string) (int, error)
}

type Auditor interface {
	Record(ctx context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error)
}

type Notifier interface {
	Create(ctx context.Context, targetUserID, message, notificationType string) (kpi.SystemNotification, error)
}

// OutcomeRecorder counts resolutions, typically into prometheus.
type OutcomeRecorder interface {
	IncResolution(action, outcome string)
}
