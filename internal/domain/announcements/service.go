package announcements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/ids"
	"kpiconsole/internal/platform/store"
)

var (
	ErrMessageRequired    = errors.New("announcement message is required")
	ErrDepartmentRequired = errors.New("announcement department is required")
	ErrForeignDepartment  = errors.New("announcements may only target the sender's department")
)

type Auditor interface {
	Record(ctx context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error)
}

type Service struct {
	board *store.Collection[[]kpi.Announcement]
	audit Auditor
	Now   func() time.Time
}

func New(st *store.Store, audit Auditor) *Service {
	return &Service{
		board: store.NewCollection(st, store.KeyAnnouncements, func() []kpi.Announcement { return []kpi.Announcement{} }),
		audit: audit,
		Now:   time.Now,
	}
}

// Broadcast posts a message to a department, defaulting to the sender's own.
// Only admins and executives may address another department.
func (s *Service) Broadcast(ctx context.Context, sender kpi.User, department, message string) (kpi.Announcement, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return kpi.Announcement{}, ErrMessageRequired
	}
	department = strings.TrimSpace(department)
	if department == "" {
		department = sender.Department
	}
	if department == "" {
		return kpi.Announcement{}, ErrDepartmentRequired
	}
	if !canAddressAny(sender.Role) {
		if !strings.EqualFold(department, sender.Department) {
			return kpi.Announcement{}, fmt.Errorf("%w: %s", ErrForeignDepartment, department)
		}
		department = sender.Department
	}
	now := s.Now().UTC()
	a := kpi.Announcement{
		ID:         ids.New(now),
		Department: department,
		SenderName: sender.Name,
		Message:    message,
		Timestamp:  now,
	}
	err := s.board.Update(ctx, func(items *[]kpi.Announcement) error {
		*items = store.AppendCapped(*items, a, kpi.AnnouncementCap)
		return nil
	})
	if err != nil {
		return kpi.Announcement{}, err
	}
	if s.audit != nil {
		if _, err := s.audit.Record(ctx, sender.Name, kpi.ActionAnnouncement, fmt.Sprintf("Broadcast to %s", department), kpi.AuditInfo); err != nil {
			return kpi.Announcement{}, err
		}
	}
	return a, nil
}

func canAddressAny(role kpi.Role) bool {
	return role == kpi.RoleAdmin || role == kpi.RoleExecutive
}

// Active returns the department's announcements younger than
// kpi.AnnouncementActiveDays, newest first. Older ones stay stored until the
// cap evicts them.
func (s *Service) Active(ctx context.Context, department string, now time.Time) ([]kpi.Announcement, error) {
	items, err := s.board.Get(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.AddDate(0, 0, -kpi.AnnouncementActiveDays)
	out := []kpi.Announcement{}
	for i := len(items) - 1; i >= 0; i-- {
		a := items[i]
		if !strings.EqualFold(a.Department, department) || !a.Timestamp.After(cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) All(ctx context.Context) ([]kpi.Announcement, error) {
	return s.board.Get(ctx)
}
