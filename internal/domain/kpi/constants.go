package kpi

type Role string

const (
	RoleEmployee   Role = "Employee"
	RoleSupervisor Role = "Supervisor"
	RoleDeptHead   Role = "Department Head"
	RoleAdmin      Role = "Admin"
	RoleExecutive  Role = "Executive"
)

const (
	AuditInfo = "INFO"
	AuditOK   = "OK"
	AuditWarn = "WARN"

	NotifyInfo    = "INFO"
	NotifySuccess = "SUCCESS"
	NotifyAlert   = "ALERT"
)

const (
	ActionLogin          = "AUTH_LOGIN"
	ActionTransmit       = "KPI_TRANSMIT"
	ActionVerifySuccess  = "VERIFY_SUCCESS"
	ActionVerifyFailed   = "VERIFY_FAILED"
	ActionRejected       = "KPI_REJECTED"
	ActionAnnouncement   = "ANNOUNCEMENT"
	ActionUserProvision  = "USER_PROVISION"
	ActionUserRename     = "USER_RENAME"
	ActionUserTransfer   = "USER_TRANSFER"
	ActionUserDelete     = "USER_DELETE"
	ActionDepartmentAdd  = "DEPT_CREATE"
	ActionStoreSnapshot  = "STORE_SNAPSHOT"
	ActionReportGenerate = "REPORT_GENERATE"
)

const (
	// FlagResponseTimeMs and FlagAccuracyPct are the queue triage thresholds.
	FlagResponseTimeMs = 250
	FlagAccuracyPct    = 97.0

	// MaxRatio caps a single metric at 120% of its target.
	MaxRatio = 1.2

	AnnouncementActiveDays = 30
)

const (
	AuditCap        = 500
	NotificationCap = 100
	AnnouncementCap = 50
	HistoryCap      = 5
)
