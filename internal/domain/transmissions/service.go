package transmissions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/ids"
)

type Service struct {
	store    StoreAPI
	audit    Auditor
	notify   Notifier
	Recorder OutcomeRecorder
	Now      func() time.Time
}

func New(store StoreAPI, audit Auditor, notify Notifier) *Service {
	return &Service{store: store, audit: audit, notify: notify, Now: time.Now}
}

// Submit validates the reported figures and queues them for review.
func (s *Service) Submit(ctx context.Context, from Submitter, stats kpi.SystemStats) (kpi.Transmission, error) {
	if strings.TrimSpace(from.ID) == "" || strings.TrimSpace(from.Name) == "" {
		return kpi.Transmission{}, ErrSubmitterRequired
	}
	metrics, err := kpi.ParseStats(stats)
	if err != nil {
		return kpi.Transmission{}, err
	}
	now := s.Now().UTC()
	t := kpi.Transmission{
		ID:          ids.New(now),
		UserID:      from.ID,
		UserName:    from.Name,
		Department:  from.Department,
		Timestamp:   now,
		SystemStats: metrics.Stats(),
	}
	if err := s.store.AppendPending(ctx, t); err != nil {
		return kpi.Transmission{}, err
	}
	if err := s.store.PushHistory(ctx, from.ID, t); err != nil {
		slog.Warn("transmission history update failed", "userId", from.ID, "err", err)
	}
	s.sendNotification(ctx, from.ID, "Transmission broadcast to the network", kpi.NotifyInfo)
	s.recordAudit(ctx, from.Name, kpi.ActionTransmit, fmt.Sprintf(
		"KPI transmission %s (response %s, accuracy %s, uptime %s)",
		t.ID, t.ResponseTime, t.Accuracy, t.Uptime), kpi.AuditInfo)
	return t, nil
}

// Approve accepts the submitter's own figures as validated stats.
func (s *Service) Approve(ctx context.Context, by Reviewer, id string) (Resolution, error) {
	t, found, err := s.store.TakePending(ctx, id)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return s.alreadyResolved("approve"), nil
	}
	if err := s.validate(ctx, by, t, t.SystemStats); err != nil {
		return Resolution{}, err
	}
	s.recordAudit(ctx, by.Name, kpi.ActionVerifySuccess, fmt.Sprintf(
		"Validated transmission %s from %s", t.ID, t.UserName), kpi.AuditOK)
	s.notifyApproval(ctx, by, t)
	s.count("approve", OutcomeApproved)
	stats := t.SystemStats
	return Resolution{Outcome: OutcomeApproved, Transmission: &t, Validated: &stats}, nil
}

// Override approves the transmission with replacement figures. The
// justification is mandatory and ends up in the audit log.
func (s *Service) Override(ctx context.Context, by Reviewer, id string, overrides kpi.SystemStats, justification string) (Resolution, error) {
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return Resolution{}, ErrJustificationRequired
	}
	metrics, err := kpi.ParseStats(overrides)
	if err != nil {
		return Resolution{}, err
	}
	stats := metrics.Stats()

	t, found, err := s.store.TakePending(ctx, id)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return s.alreadyResolved("override"), nil
	}
	if err := s.validate(ctx, by, t, stats); err != nil {
		return Resolution{}, err
	}
	s.recordAudit(ctx, by.Name, kpi.ActionVerifySuccess, fmt.Sprintf(
		"Validated transmission %s from %s (Override applied): response %s, accuracy %s, uptime %s. Justification: %s",
		t.ID, t.UserName, stats.ResponseTime, stats.Accuracy, stats.Uptime, justification), kpi.AuditOK)
	s.notifyApproval(ctx, by, t)
	s.count("override", OutcomeOverridden)
	return Resolution{Outcome: OutcomeOverridden, Transmission: &t, Validated: &stats}, nil
}

// Reject discards the transmission. Validated stats are left untouched.
func (s *Service) Reject(ctx context.Context, by Reviewer, id, reason string) (Resolution, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Resolution{}, ErrReasonRequired
	}
	t, found, err := s.store.TakePending(ctx, id)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return s.alreadyResolved("reject"), nil
	}
	s.recordAudit(ctx, by.Name, kpi.ActionRejected, fmt.Sprintf(
		"Rejected transmission %s from %s. Reason: %s", t.ID, t.UserName, reason), kpi.AuditWarn)
	s.sendNotification(ctx, t.UserID, fmt.Sprintf(
		"Your KPI transmission was rejected by %s: %s", by.Name, reason), kpi.NotifyAlert)
	s.count("reject", OutcomeRejected)
	return Resolution{Outcome: OutcomeRejected, Transmission: &t}, nil
}

func (s *Service) Pending(ctx context.Context) ([]kpi.Transmission, error) {
	return s.store.Pending(ctx)
}

func (s *Service) PendingFor(ctx context.Context, userID string) ([]kpi.Transmission, error) {
	return s.filterPending(ctx, func(t kpi.Transmission) bool { return t.UserID == userID })
}

// Flagged returns the pending transmissions that breach a triage threshold.
func (s *Service) Flagged(ctx context.Context) ([]kpi.Transmission, error) {
	return s.filterPending(ctx, func(t kpi.Transmission) bool { return kpi.IsFlagged(t.SystemStats) })
}

func (s *Service) filterPending(ctx context.Context, keep func(kpi.Transmission) bool) ([]kpi.Transmission, error) {
	items, err := s.store.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out := []kpi.Transmission{}
	for _, t := range items {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (kpi.Transmission, error) {
	items, err := s.store.Pending(ctx)
	if err != nil {
		return kpi.Transmission{}, err
	}
	for _, t := range items {
		if t.ID == id {
			return t, nil
		}
	}
	return kpi.Transmission{}, ErrTransmissionNotFound
}

func (s *Service) Validated(ctx context.Context, userID string) (kpi.SystemStats, bool, error) {
	return s.store.Validated(ctx, userID)
}

func (s *Service) AllValidated(ctx context.Context) (map[string]kpi.SystemStats, error) {
	return s.store.AllValidated(ctx)
}

func (s *Service) History(ctx context.Context, userID string) ([]kpi.Transmission, error) {
	return s.store.History(ctx, userID)
}

// PurgeUser removes every workflow record of the user. Audit entries are
// kept.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	removed, err := s.store.PurgeUser(ctx, userID)
	if err != nil {
		return err
	}
	slog.Info("transmissions purged", "userId", userID, "pending", removed)
	return nil
}

// validate writes the validated stats of a taken transmission. When the
// write fails the transmission goes back into the queue; if that fails too
// the loss is recorded in the audit trail.
func (s *Service) validate(ctx context.Context, by Reviewer, t kpi.Transmission, stats kpi.SystemStats) error {
	err := s.store.SetValidated(ctx, t.UserID, stats)
	if err == nil {
		return nil
	}
	if rerr := s.store.RestorePending(ctx, t); rerr != nil {
		slog.Error("transmission requeue failed", "id", t.ID, "err", rerr)
		s.recordAudit(ctx, by.Name, kpi.ActionVerifyFailed, fmt.Sprintf(
			"Validation of transmission %s from %s failed and it could not be requeued: %v", t.ID, t.UserName, err), kpi.AuditWarn)
	}
	return fmt.Errorf("store validated stats: %w", err)
}

func (s *Service) notifyApproval(ctx context.Context, by Reviewer, t kpi.Transmission) {
	s.sendNotification(ctx, by.ID, fmt.Sprintf("Verification of %s's transmission complete", t.UserName), kpi.NotifySuccess)
	s.sendNotification(ctx, t.UserID, fmt.Sprintf("Your KPI transmission was verified by %s", by.Name), kpi.NotifySuccess)
}

func (s *Service) alreadyResolved(action string) Resolution {
	s.count(action, OutcomeAlreadyResolved)
	return Resolution{Outcome: OutcomeAlreadyResolved}
}

// Side effects after the pending removal cannot be rolled back, so their
// failures are logged rather than returned.
func (s *Service) recordAudit(ctx context.Context, actor, action, details, entryType string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, actor, action, details, entryType); err != nil {
		slog.Error("audit record failed", "action", action, "actor", actor, "err", err)
	}
}

func (s *Service) sendNotification(ctx context.Context, userID, message, notificationType string) {
	if s.notify == nil || userID == "" {
		return
	}
	if _, err := s.notify.Create(ctx, userID, message, notificationType); err != nil {
		slog.Warn("notification create failed", "userId", userID, "err", err)
	}
}

func (s *Service) count(action string, outcome Outcome) {
	if s.Recorder != nil {
		s.Recorder.IncResolution(action, string(outcome))
	}
}
