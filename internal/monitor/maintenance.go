package monitor

import (
	"time"

	"upmon/internal/models"
)

// InMaintenance reports whether now falls inside any of the monitor's
// suppression windows. The interval is closed on both ends and all
// timestamps are normalized to UTC before comparison. Pure; windows must
// be pre-loaded by the caller.
func InMaintenance(windows []models.MaintenanceWindow, now time.Time) bool {
	now = now.UTC()
	for _, w := range windows {
		start := w.StartTime.UTC()
		end := w.EndTime.UTC()
		if !now.Before(start) && !now.After(end) {
			return true
		}
	}
	return false
}
