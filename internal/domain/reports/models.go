package reports

import (
	"time"

	"kpiconsole/internal/domain/kpi"
)

// UnitData is everything a unit report prints.
type UnitData struct {
	Department  string
	GeneratedAt time.Time
	Members     int
	Queue       []QueueRow
	Validated   []ValidatedRow
}

type QueueRow struct {
	Transmission kpi.Transmission
	Flagged      bool
}

type ValidatedRow struct {
	UserID           string
	Name             string
	Stats            kpi.SystemStats
	PayoutMultiplier float64
}
