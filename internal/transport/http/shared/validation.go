package shared

import (
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/transport/http/api"
)

// MaxTextLen bounds free-text inputs such as justifications and messages.
const MaxTextLen = 1000

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field issues for one request payload.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: field, Reason: reason})
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Text requires a non-blank value of at most MaxTextLen characters.
func (v *Validator) Text(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
		return
	}
	if utf8.RuneCountInString(value) > MaxTextLen {
		v.Add(field, "must be at most 1000 characters")
	}
}

// Role parses value as a console role. A blank value is reported only when
// required is set; optional blanks return ok=false without an issue.
func (v *Validator) Role(field, value string, required bool) (kpi.Role, bool) {
	if strings.TrimSpace(value) == "" {
		if required {
			v.Add(field, "is required")
		}
		return "", false
	}
	role, err := kpi.ParseRole(value)
	if err != nil {
		v.Add(field, "must be a known role")
		return "", false
	}
	return role, true
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns the collected issues ordered by field.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := append([]ValidationIssue(nil), v.issues...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// Reject writes a validation_error response when issues were collected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

// Decode reads a JSON body into out. Unknown fields are rejected.
func Decode(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
