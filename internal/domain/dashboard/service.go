package dashboard

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/domain/roster"
)

type Workflow interface {
	Pending(ctx context.Context) ([]kpi.Transmission, error)
	Validated(ctx context.Context, userID string) (kpi.SystemStats, bool, error)
	AllValidated(ctx context.Context) (map[string]kpi.SystemStats, error)
	History(ctx context.Context, userID string) ([]kpi.Transmission, error)
}

type Inbox interface {
	List(ctx context.Context, userID string) ([]kpi.SystemNotification, error)
}

type Board interface {
	Active(ctx context.Context, department string, now time.Time) ([]kpi.Announcement, error)
}

type Directory interface {
	Members(ctx context.Context) ([]roster.Member, error)
}

type Service struct {
	workflow  Workflow
	inbox     Inbox
	board     Board
	directory Directory
	templates kpi.Templates
	Now       func() time.Time
}

func New(workflow Workflow, inbox Inbox, board Board, directory Directory, templates kpi.Templates) *Service {
	return &Service{
		workflow:  workflow,
		inbox:     inbox,
		board:     board,
		directory: directory,
		templates: templates,
		Now:       time.Now,
	}
}

func (s *Service) Templates() kpi.Templates {
	return s.templates
}

// Score evaluates actuals against the role's template.
func (s *Service) Score(role kpi.Role, actuals map[string]float64) (float64, error) {
	tmpl, ok := s.templates[role]
	if !ok {
		return 0, kpi.ErrUnknownRole
	}
	return kpi.Score(tmpl, actuals)
}

func (s *Service) ForUser(ctx context.Context, user kpi.User) (View, error) {
	view := View{User: user, Template: s.templates[user.Role]}

	stats, ok, err := s.workflow.Validated(ctx, user.ID)
	if err != nil {
		return View{}, err
	}
	if ok {
		view.Validated = &stats
		if m, err := kpi.ParseStats(stats); err != nil {
			slog.Warn("validated stats unreadable", "userId", user.ID, "err", err)
		} else {
			view.Metrics = &m
			multiplier := kpi.PayoutMultiplier(m)
			yield := kpi.ProjectedYield(user.IncentiveTarget, multiplier)
			view.PayoutMultiplier = &multiplier
			view.ProjectedYield = &yield
			if covers(view.Template, m.Actuals()) {
				if score, err := kpi.Score(view.Template, m.Actuals()); err == nil {
					view.Score = &score
				}
			}
		}
	}

	pending, err := s.workflow.Pending(ctx)
	if err != nil {
		return View{}, err
	}
	for _, t := range pending {
		if t.UserID == user.ID {
			view.PendingCount++
		}
	}

	if view.History, err = s.workflow.History(ctx, user.ID); err != nil {
		return View{}, err
	}
	if view.Notifications, err = s.inbox.List(ctx, user.ID); err != nil {
		return View{}, err
	}
	view.Announcements = []kpi.Announcement{}
	if user.Department != "" {
		if view.Announcements, err = s.board.Active(ctx, user.Department, s.Now()); err != nil {
			return View{}, err
		}
	}
	return view, nil
}

// covers reports whether actuals has a value for every metric of tmpl.
func covers(tmpl kpi.MetricTemplate, actuals map[string]float64) bool {
	if len(tmpl) == 0 {
		return false
	}
	for _, def := range tmpl {
		if _, ok := actuals[def.ID]; !ok {
			return false
		}
	}
	return true
}

// Aggregate summarises pending and validated figures, optionally for one
// department. Validated stats are attributed through the registry.
func (s *Service) Aggregate(ctx context.Context, department string) (Summary, error) {
	department = strings.TrimSpace(department)
	summary := Summary{Department: department}
	inDept := func(d string) bool {
		return department == "" || strings.EqualFold(d, department)
	}

	members, err := s.directory.Members(ctx)
	if err != nil {
		return Summary{}, err
	}
	deptOf := make(map[string]string, len(members))
	for _, m := range members {
		deptOf[m.ID] = m.Department
		if inDept(m.Department) {
			summary.Headcount++
		}
	}

	pending, err := s.workflow.Pending(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, t := range pending {
		d := t.Department
		if registered, ok := deptOf[t.UserID]; ok {
			d = registered
		}
		if !inDept(d) {
			continue
		}
		summary.Pending++
		if kpi.IsFlagged(t.SystemStats) {
			summary.Flagged++
		}
	}

	validated, err := s.workflow.AllValidated(ctx)
	if err != nil {
		return Summary{}, err
	}
	var rt, acc, up, payout float64
	for userID, stats := range validated {
		if !inDept(deptOf[userID]) {
			continue
		}
		m, err := kpi.ParseStats(stats)
		if err != nil {
			slog.Warn("validated stats unreadable", "userId", userID, "err", err)
			continue
		}
		summary.Validated++
		rt += m.ResponseTimeMs
		acc += m.AccuracyPct
		up += m.UptimePct
		payout += kpi.PayoutMultiplier(m)
	}
	if n := float64(summary.Validated); n > 0 {
		summary.AvgResponseTimeMs = round2(rt / n)
		summary.AvgAccuracyPct = round2(acc / n)
		summary.AvgUptimePct = round2(up / n)
		summary.AvgPayoutMultiplier = math.Round(payout/n*10000) / 10000
	}
	return summary, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
