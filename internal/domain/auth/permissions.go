package auth

import "kpiconsole/internal/domain/kpi"

const (
	PermTransmissionsSubmit = "transmissions.submit"
	PermTransmissionsReview = "transmissions.review"
	PermStatsRead           = "stats.read"
	PermAuditRead           = "audit.read"
	PermRosterManage        = "roster.manage"
	PermAnnouncementsSend   = "announcements.broadcast"
	PermAnnouncementsRead   = "announcements.read"
	PermDashboardRead       = "dashboard.read"
	PermDashboardAggregate  = "dashboard.aggregate"
	PermReportsGenerate     = "reports.generate"
	PermNotificationsRead   = "notifications.read"
	PermSystemOperate       = "system.operate"
)

var DefaultPermissions = []string{
	PermTransmissionsSubmit,
	PermTransmissionsReview,
	PermStatsRead,
	PermAuditRead,
	PermRosterManage,
	PermAnnouncementsSend,
	PermAnnouncementsRead,
	PermDashboardRead,
	PermDashboardAggregate,
	PermReportsGenerate,
	PermNotificationsRead,
	PermSystemOperate,
}

var RolePermissions = map[kpi.Role][]string{
	kpi.RoleEmployee: {
		PermTransmissionsSubmit,
		PermAnnouncementsRead,
		PermDashboardRead,
		PermNotificationsRead,
	},
	kpi.RoleSupervisor: {
		PermTransmissionsSubmit,
		PermTransmissionsReview,
		PermStatsRead,
		PermAnnouncementsSend,
		PermAnnouncementsRead,
		PermDashboardRead,
		PermReportsGenerate,
		PermNotificationsRead,
	},
	kpi.RoleDeptHead: {
		PermStatsRead,
		PermAnnouncementsSend,
		PermAnnouncementsRead,
		PermDashboardRead,
		PermDashboardAggregate,
		PermReportsGenerate,
		PermNotificationsRead,
	},
	kpi.RoleAdmin: {
		PermStatsRead,
		PermAuditRead,
		PermRosterManage,
		PermAnnouncementsRead,
		PermDashboardRead,
		PermDashboardAggregate,
		PermReportsGenerate,
		PermNotificationsRead,
		PermSystemOperate,
	},
	kpi.RoleExecutive: {
		PermStatsRead,
		PermAuditRead,
		PermAnnouncementsRead,
		PermDashboardRead,
		PermDashboardAggregate,
		PermReportsGenerate,
		PermNotificationsRead,
	},
}

func HasPermission(role kpi.Role, permission string) bool {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true
		}
	}
	return false
}
