package notifications

import (
	"context"
	"time"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/ids"
	"kpiconsole/internal/platform/store"
)

type Service struct {
	inbox *store.Collection[[]kpi.SystemNotification]
	Now   func() time.Time
}

func New(st *store.Store) *Service {
	return &Service{
		inbox: store.NewCollection(st, store.KeyNotifications, func() []kpi.SystemNotification { return []kpi.SystemNotification{} }),
		Now:   time.Now,
	}
}

// Create appends a notification; the oldest notification across all users is
// evicted beyond kpi.NotificationCap.
func (s *Service) Create(ctx context.Context, targetUserID, message, notificationType string) (kpi.SystemNotification, error) {
	now := s.Now().UTC()
	n := kpi.SystemNotification{
		ID:           ids.New(now),
		TargetUserID: targetUserID,
		Message:      message,
		Timestamp:    now,
		Type:         notificationType,
	}
	err := s.inbox.Update(ctx, func(items *[]kpi.SystemNotification) error {
		*items = store.AppendCapped(*items, n, kpi.NotificationCap)
		return nil
	})
	if err != nil {
		return kpi.SystemNotification{}, err
	}
	return n, nil
}

// List returns the user's notifications newest first.
func (s *Service) List(ctx context.Context, userID string) ([]kpi.SystemNotification, error) {
	items, err := s.inbox.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := []kpi.SystemNotification{}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].TargetUserID == userID {
			out = append(out, items[i])
		}
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	items, err := s.List(ctx, userID)
	return len(items), err
}

func (s *Service) Dismiss(ctx context.Context, userID, id string) error {
	return s.inbox.Update(ctx, func(items *[]kpi.SystemNotification) error {
		for i, n := range *items {
			if n.ID == id && n.TargetUserID == userID {
				*items = append((*items)[:i:i], (*items)[i+1:]...)
				return nil
			}
		}
		return ErrNotificationNotFound
	})
}

// DismissAll removes every notification of the user and reports how many
// were removed.
func (s *Service) DismissAll(ctx context.Context, userID string) (int, error) {
	removed := 0
	err := s.inbox.Update(ctx, func(items *[]kpi.SystemNotification) error {
		kept := make([]kpi.SystemNotification, 0, len(*items))
		for _, n := range *items {
			if n.TargetUserID != userID {
				kept = append(kept, n)
			}
		}
		removed = len(*items) - len(kept)
		if removed == 0 {
			return store.ErrNoChange
		}
		*items = kept
		return nil
	})
	return removed, err
}

func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	_, err := s.DismissAll(ctx, userID)
	return err
}
