package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kpiconsole/internal/domain/kpi"
)

type fakeRegistry map[string]kpi.Credential

func (f fakeRegistry) Credential(_ context.Context, name string) (kpi.Credential, bool, error) {
	cred, ok := f[strings.ToLower(name)]
	return cred, ok, nil
}

type recordingAudit struct {
	entries []kpi.AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error) {
	e := kpi.AuditEntry{User: actor, Action: action, Details: details, Type: entryType}
	r.entries = append(r.entries, e)
	return e, nil
}

func newService(t *testing.T) (*Service, *recordingAudit) {
	t.Helper()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	reg := fakeRegistry{
		"grace hopper": {ID: "cred-1", Name: "Grace Hopper", PasswordHash: hash, Department: "Engineering", Role: kpi.RoleSupervisor},
	}
	audit := &recordingAudit{}
	return NewService(reg, audit, "test-secret", time.Hour), audit
}

func TestLoginStub(t *testing.T) {
	svc, audit := newService(t)
	user, err := svc.Login(context.Background(), "  Ada   Lovelace ", "employee", "anything")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Name != "Ada Lovelace" || user.Email != "adalovelace@aa2001.com" {
		t.Fatalf("unexpected identity: %+v", user)
	}
	if user.ID != kpi.UserID("ada lovelace") {
		t.Fatalf("expected deterministic id, got %s", user.ID)
	}
	if user.BaseSalary != 62000 || user.IncentiveTarget != 12000 {
		t.Fatalf("unexpected financials: %+v", user)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != kpi.ActionLogin || audit.entries[0].Type != kpi.AuditInfo {
		t.Fatalf("expected one login audit entry, got %+v", audit.entries)
	}
}

func TestLoginBlankNameUsesRole(t *testing.T) {
	svc, _ := newService(t)
	user, err := svc.Login(context.Background(), "", "Executive", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Name != "User_Executive" || user.BaseSalary != 275000 {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestLoginRegisteredUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "Grace Hopper", "Supervisor", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "Grace Hopper", "Admin", "s3cret"); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("expected role mismatch, got %v", err)
	}
	user, err := svc.Login(ctx, "grace hopper", "Supervisor", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "cred-1" || user.Department != "Engineering" || user.Name != "Grace Hopper" {
		t.Fatalf("expected registry identity, got %+v", user)
	}
}

func TestLoginUnknownRole(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Login(context.Background(), "Ada", "Janitor", ""); !errors.Is(err, kpi.ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	session, err := svc.Start(context.Background(), "Grace Hopper", "Supervisor", "s3cret")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	uc, err := svc.Verify(session.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uc.UserID != "cred-1" || uc.Role != kpi.RoleSupervisor || uc.Department != "Engineering" {
		t.Fatalf("unexpected claims: %+v", uc)
	}

	if _, err := svc.Verify(session.Token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	other := NewService(fakeRegistry{}, nil, "other-secret", time.Hour)
	if _, err := other.Verify(session.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateToken("s", Claims{UserID: "u", Name: "n", Role: kpi.RoleEmployee}, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken("s", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}
