package transmissions

import (
	"context"
	"slices"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/store"
)

type Store struct {
	st        *store.Store
	pending   *store.Collection[[]kpi.Transmission]
	validated *store.Collection[map[string]kpi.SystemStats]
}

func NewStore(st *store.Store) *Store {
	return &Store{
		st:        st,
		pending:   store.NewCollection(st, store.KeyPending, emptyTransmissions),
		validated: store.NewCollection(st, store.KeyValidated, func() map[string]kpi.SystemStats { return map[string]kpi.SystemStats{} }),
	}
}

func emptyTransmissions() []kpi.Transmission { return []kpi.Transmission{} }

func (s *Store) history(userID string) *store.Collection[[]kpi.Transmission] {
	return store.NewCollection(s.st, store.HistoryKey(userID), emptyTransmissions)
}

func (s *Store) AppendPending(ctx context.Context, t kpi.Transmission) error {
	return s.pending.Update(ctx, func(items *[]kpi.Transmission) error {
		*items = append(*items, t)
		return nil
	})
}

func (s *Store) TakePending(ctx context.Context, id string) (kpi.Transmission, bool, error) {
	var taken kpi.Transmission
	found := false
	err := s.pending.Update(ctx, func(items *[]kpi.Transmission) error {
		found = false
		for i, t := range *items {
			if t.ID == id {
				taken = t
				found = true
				*items = append((*items)[:i:i], (*items)[i+1:]...)
				return nil
			}
		}
		return store.ErrNoChange
	})
	if err != nil {
		return kpi.Transmission{}, false, err
	}
	return taken, found, nil
}

func (s *Store) RestorePending(ctx context.Context, t kpi.Transmission) error {
	return s.pending.Update(ctx, func(items *[]kpi.Transmission) error {
		at := len(*items)
		for i, other := range *items {
			if other.ID == t.ID {
				return store.ErrNoChange
			}
			if at == len(*items) && other.ID > t.ID {
				at = i
			}
		}
		*items = slices.Insert(*items, at, t)
		return nil
	})
}

func (s *Store) Pending(ctx context.Context) ([]kpi.Transmission, error) {
	return s.pending.Get(ctx)
}

func (s *Store) SetValidated(ctx context.Context, userID string, stats kpi.SystemStats) error {
	return s.validated.Update(ctx, func(m *map[string]kpi.SystemStats) error {
		(*m)[userID] = stats
		return nil
	})
}

func (s *Store) Validated(ctx context.Context, userID string) (kpi.SystemStats, bool, error) {
	m, err := s.validated.Get(ctx)
	if err != nil {
		return kpi.SystemStats{}, false, err
	}
	stats, ok := m[userID]
	return stats, ok, nil
}

func (s *Store) AllValidated(ctx context.Context) (map[string]kpi.SystemStats, error) {
	return s.validated.Get(ctx)
}

func (s *Store) PushHistory(ctx context.Context, userID string, t kpi.Transmission) error {
	return s.history(userID).Update(ctx, func(items *[]kpi.Transmission) error {
		*items = store.PrependCapped(*items, t, kpi.HistoryCap)
		return nil
	})
}

func (s *Store) History(ctx context.Context, userID string) ([]kpi.Transmission, error) {
	return s.history(userID).Get(ctx)
}

// PurgeUser drops the user's pending transmissions, validated stats and
// history, returning the number of pending transmissions removed.
func (s *Store) PurgeUser(ctx context.Context, userID string) (int, error) {
	removed := 0
	err := s.pending.Update(ctx, func(items *[]kpi.Transmission) error {
		kept := make([]kpi.Transmission, 0, len(*items))
		for _, t := range *items {
			if t.UserID != userID {
				kept = append(kept, t)
			}
		}
		removed = len(*items) - len(kept)
		if removed == 0 {
			return store.ErrNoChange
		}
		*items = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	err = s.validated.Update(ctx, func(m *map[string]kpi.SystemStats) error {
		if _, ok := (*m)[userID]; !ok {
			return store.ErrNoChange
		}
		delete(*m, userID)
		return nil
	})
	if err != nil {
		return removed, err
	}
	err = s.history(userID).Update(ctx, func(items *[]kpi.Transmission) error {
		if len(*items) == 0 {
			return store.ErrNoChange
		}
		*items = emptyTransmissions()
		return nil
	})
	return removed, err
}
