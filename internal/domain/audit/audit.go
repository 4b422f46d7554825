package audit

import (
	"context"
	"strings"
	"time"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/ids"
	"kpiconsole/internal/platform/store"
)

type Filter struct {
	Action string
	User   string
	Type   string
}

func (f Filter) matches(e kpi.AuditEntry) bool {
	if f.Action != "" && !strings.EqualFold(e.Action, f.Action) {
		return false
	}
	if f.User != "" && !strings.EqualFold(e.User, f.User) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(e.Type, f.Type) {
		return false
	}
	return true
}

// Service keeps the append-only audit log. The oldest entries are evicted
// once the log holds kpi.AuditCap entries; nothing else rewrites it.
type Service struct {
	log *store.Collection[[]kpi.AuditEntry]
	Now func() time.Time
}

func New(st *store.Store) *Service {
	return &Service{
		log: store.NewCollection(st, store.KeyAudit, func() []kpi.AuditEntry { return []kpi.AuditEntry{} }),
		Now: time.Now,
	}
}

func (s *Service) Record(ctx context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error) {
	now := s.Now().UTC()
	entry := kpi.AuditEntry{
		ID:        ids.New(now),
		Timestamp: now,
		User:      actor,
		Action:    action,
		Details:   details,
		Type:      entryType,
	}
	err := s.log.Update(ctx, func(entries *[]kpi.AuditEntry) error {
		*entries = store.AppendCapped(*entries, entry, kpi.AuditCap)
		return nil
	})
	if err != nil {
		return kpi.AuditEntry{}, err
	}
	return entry, nil
}

// List returns matching entries newest first.
func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]kpi.AuditEntry, error) {
	entries, err := s.log.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]kpi.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if filter.matches(entries[i]) {
			out = append(out, entries[i])
		}
	}
	if offset >= len(out) {
		return []kpi.AuditEntry{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	entries, err := s.log.Get(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if filter.matches(e) {
			n++
		}
	}
	return n, nil
}
