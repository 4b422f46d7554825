package dashboard

import (
	"kpiconsole/internal/domain/kpi"
)

// View is the role dashboard of one user.
type View struct {
	User             kpi.User                 `json:"user"`
	Template         kpi.MetricTemplate       `json:"template"`
	Validated        *kpi.SystemStats         `json:"validated,omitempty"`
	Metrics          *kpi.Metrics             `json:"metrics,omitempty"`
	Score            *float64                 `json:"score,omitempty"`
	PayoutMultiplier *float64                 `json:"payoutMultiplier,omitempty"`
	ProjectedYield   *float64                 `json:"projectedYield,omitempty"`
	PendingCount     int                      `json:"pendingCount"`
	History          []kpi.Transmission       `json:"history"`
	Notifications    []kpi.SystemNotification `json:"notifications"`
	Announcements    []kpi.Announcement       `json:"announcements"`
}

// Summary aggregates the workflow state of one department, or of the whole
// organisation when Department is empty.
type Summary struct {
	Department          string  `json:"department,omitempty"`
	Headcount           int     `json:"headcount"`
	Pending             int     `json:"pending"`
	Flagged             int     `json:"flagged"`
	Validated           int     `json:"validated"`
	AvgResponseTimeMs   float64 `json:"avgResponseTimeMs"`
	AvgAccuracyPct      float64 `json:"avgAccuracyPct"`
	AvgUptimePct        float64 `json:"avgUptimePct"`
	AvgPayoutMultiplier float64 `json:"avgPayoutMultiplier"`
}
