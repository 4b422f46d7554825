package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/store"
)

func newService() *Service {
	return New(store.New(store.NewMemoryBackend()))
}

func TestRecordCapsAtLimit(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	for i := 0; i < kpi.AuditCap+1; i++ {
		if _, err := svc.Record(ctx, "Ada", kpi.ActionTransmit, fmt.Sprintf("entry %d", i), kpi.AuditInfo); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	total, err := svc.Count(ctx, Filter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != kpi.AuditCap {
		t.Fatalf("expected %d entries, got %d", kpi.AuditCap, total)
	}

	oldest, err := svc.List(ctx, Filter{}, 1, kpi.AuditCap-1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(oldest) != 1 || oldest[0].Details != "entry 1" {
		t.Fatalf("expected first entry evicted, oldest is %+v", oldest)
	}

	newest, _ := svc.List(ctx, Filter{}, 1, 0)
	if newest[0].Details != fmt.Sprintf("entry %d", kpi.AuditCap) {
		t.Fatalf("expected newest entry first, got %q", newest[0].Details)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	svc.Now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	mustRecord := func(actor, action, typ string) {
		if _, err := svc.Record(ctx, actor, action, "", typ); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	mustRecord("Ada", kpi.ActionTransmit, kpi.AuditInfo)
	mustRecord("Grace", kpi.ActionVerifySuccess, kpi.AuditOK)
	mustRecord("Grace", kpi.ActionRejected, kpi.AuditWarn)
	mustRecord("Ada", kpi.ActionTransmit, kpi.AuditInfo)

	byGrace, _ := svc.List(ctx, Filter{User: "grace"}, 0, 0)
	if len(byGrace) != 2 || byGrace[0].Action != kpi.ActionRejected {
		t.Fatalf("unexpected user filter result: %+v", byGrace)
	}

	warn, _ := svc.Count(ctx, Filter{Type: kpi.AuditWarn})
	if warn != 1 {
		t.Fatalf("expected 1 warning, got %d", warn)
	}

	page, _ := svc.List(ctx, Filter{Action: kpi.ActionTransmit}, 1, 1)
	if len(page) != 1 || !page[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, _ := svc.List(ctx, Filter{}, 10, 50)
	if len(empty) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(empty))
	}
}
