package shared

import (
	"net/http/httptest"
	"strings"
	"testing"

	"kpiconsole/internal/domain/kpi"
)

func TestParsePage(t *testing.T) {
	cases := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 50, 0},
		{"limit=10&offset=5", 10, 5},
		{"limit=999", 200, 0},
		{"limit=-3&offset=-1", 50, 0},
		{"limit=20&page=3", 20, 40},
		{"limit=x&page=0", 50, 0},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/items?"+tc.query, nil)
		page := ParsePage(r, 50, 200)
		if page.Limit != tc.limit || page.Offset != tc.offset {
			t.Fatalf("%q: got %+v, want limit=%d offset=%d", tc.query, page, tc.limit, tc.offset)
		}
	}
}

func TestSetTotal(t *testing.T) {
	w := httptest.NewRecorder()
	SetTotal(w, 42)
	if got := w.Header().Get("X-Total-Count"); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
}

func TestValidatorCollectsSortedIssues(t *testing.T) {
	v := NewValidator()
	v.Text("reason", "   ", "is required")
	v.Text("justification", strings.Repeat("x", MaxTextLen+1), "is required")
	role, ok := v.Role("role", "intern", true)
	if ok || role != "" {
		t.Fatalf("expected unknown role to fail, got %q", role)
	}

	issues := v.Issues()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %+v", issues)
	}
	if issues[0].Field != "justification" || issues[1].Field != "reason" || issues[2].Field != "role" {
		t.Fatalf("issues not ordered by field: %+v", issues)
	}
}

func TestValidatorOptionalRole(t *testing.T) {
	v := NewValidator()
	if _, ok := v.Role("role", "", false); ok {
		t.Fatalf("blank optional role should not parse")
	}
	if v.HasIssues() {
		t.Fatalf("blank optional role should not add an issue")
	}
	role, ok := v.Role("role", "supervisor", false)
	if !ok || role != kpi.RoleSupervisor {
		t.Fatalf("expected supervisor, got %q ok=%v", role, ok)
	}
}

func TestValidatorRejectWritesEnvelope(t *testing.T) {
	v := NewValidator()
	if v.Reject(httptest.NewRecorder(), "req-1") {
		t.Fatalf("empty validator should not reject")
	}
	v.Required("name", "", "is required")
	w := httptest.NewRecorder()
	if !v.Reject(w, "req-1") {
		t.Fatalf("expected rejection")
	}
	if w.Code != 400 || !strings.Contains(w.Body.String(), `"validation_error"`) || !strings.Contains(w.Body.String(), `"name"`) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Ada","extra":1}`))
	if err := Decode(r, &out); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
