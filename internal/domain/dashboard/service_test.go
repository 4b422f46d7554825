package dashboard

import (
	"context"
	"math"
	"testing"

	"kpiconsole/internal/domain/announcements"
	"kpiconsole/internal/domain/audit"
	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/domain/notifications"
	"kpiconsole/internal/domain/roster"
	"kpiconsole/internal/domain/transmissions"
	"kpiconsole/internal/platform/store"
)

type fixture struct {
	svc    *Service
	tx     *transmissions.Service
	roster *roster.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := store.New(store.NewMemoryBackend())
	a := audit.New(st)
	n := notifications.New(st)
	tx := transmissions.New(transmissions.NewStore(st), a, n)
	r := roster.New(st, a, "secret", "123456", tx, n)
	if err := r.Seed(ctx, []string{"Operations", "Engineering"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	board := announcements.New(st, a)
	return fixture{svc: New(tx, n, board, r, kpi.DefaultTemplates()), tx: tx, roster: r}
}

func (f fixture) provision(t *testing.T, name, dept string) kpi.User {
	t.Helper()
	m, err := f.roster.Provision(context.Background(), "Root", roster.ProvisionRequest{Name: name, Role: kpi.RoleEmployee, Department: dept})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	return auth.UserContext{UserID: m.ID, Name: m.Name, Role: m.Role, Department: m.Department}.User()
}

func (f fixture) validate(t *testing.T, u kpi.User, rt, acc, up string) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.tx.Submit(ctx, transmissions.Submitter{ID: u.ID, Name: u.Name, Department: u.Department},
		kpi.SystemStats{ResponseTime: rt, Accuracy: acc, Uptime: up})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.tx.Approve(ctx, transmissions.Reviewer{ID: "sup", Name: "Sup"}, tx.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func TestForUserComputesScoreAndPayout(t *testing.T) {
	f := newFixture(t)
	ada := f.provision(t, "Ada", "Operations")
	f.validate(t, ada, "150ms", "97.5%", "99.8%")

	view, err := f.svc.ForUser(context.Background(), ada)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if view.Score == nil || *view.Score != 107.8 {
		t.Fatalf("expected score 107.8, got %v", view.Score)
	}
	if view.ProjectedYield == nil || math.Abs(*view.ProjectedYield-11676.6) > 1e-6 {
		t.Fatalf("expected projected yield 11676.6, got %v", view.ProjectedYield)
	}
	if len(view.History) != 1 || len(view.Notifications) != 2 || view.PendingCount != 0 {
		t.Fatalf("unexpected view: history=%d notes=%d pending=%d", len(view.History), len(view.Notifications), view.PendingCount)
	}
}

func TestForUserWithoutStats(t *testing.T) {
	f := newFixture(t)
	exec := auth.UserContext{UserID: kpi.UserID("Boss"), Name: "Boss", Role: kpi.RoleExecutive}.User()

	view, err := f.svc.ForUser(context.Background(), exec)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if view.Score != nil || view.Validated != nil {
		t.Fatalf("expected no score without validated stats")
	}
	if len(view.Template) != 3 {
		t.Fatalf("expected executive template, got %d metrics", len(view.Template))
	}
}

func TestAggregateByDepartment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.provision(t, "Ada", "Operations")
	bob := f.provision(t, "Bob", "Operations")
	eve := f.provision(t, "Eve", "Engineering")
	f.validate(t, ada, "200ms", "98%", "99%")
	f.validate(t, bob, "100ms", "96%", "100%")
	f.validate(t, eve, "400ms", "90%", "90%")
	if _, err := f.tx.Submit(ctx, transmissions.Submitter{ID: ada.ID, Name: ada.Name, Department: ada.Department},
		kpi.SystemStats{ResponseTime: "300ms", Accuracy: "99%", Uptime: "99%"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ops, err := f.svc.Aggregate(ctx, "operations")
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if ops.Headcount != 2 || ops.Validated != 2 || ops.Pending != 1 || ops.Flagged != 1 {
		t.Fatalf("unexpected counts: %+v", ops)
	}
	if ops.AvgResponseTimeMs != 150 || ops.AvgAccuracyPct != 97 || ops.AvgUptimePct != 99.5 {
		t.Fatalf("unexpected averages: %+v", ops)
	}

	all, _ := f.svc.Aggregate(ctx, "")
	if all.Headcount != 3 || all.Validated != 3 {
		t.Fatalf("unexpected org summary: %+v", all)
	}
}

func TestScoreUsesRoleTemplate(t *testing.T) {
	f := newFixture(t)
	score, err := f.svc.Score(kpi.RoleExecutive, map[string]float64{"revenueGrowth": 12, "clientRetention": 95, "operationalMargin": 20})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 100 {
		t.Fatalf("expected 100, got %v", score)
	}
	if _, err := f.svc.Score("Intern", nil); err == nil {
		t.Fatalf("expected unknown role error")
	}
}
