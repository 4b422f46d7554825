package store

import (
	"regexp"
	"strings"
)

const (
	KeyPending       = "kpi.pending"
	KeyValidated     = "kpi.validated"
	KeyAudit         = "kpi.audit"
	KeyNotifications = "kpi.notifications"
	KeyAnnouncements = "kpi.announcements"
	KeyRoster        = "kpi.roster"
	KeyCredentials   = "kpi.credentials"
	KeyDepartments   = "kpi.departments"
	KeyJobRuns       = "kpi.jobs"
	KeyIdempotency   = "kpi.idempotency"

	historyPrefix = "kpi.history."
)

func HistoryKey(userID string) string {
	return historyPrefix + userID
}

func IsHistoryKey(key string) bool {
	return strings.HasPrefix(key, historyPrefix)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}
