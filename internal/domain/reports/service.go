package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/domain/roster"
)

var ErrDepartmentRequired = errors.New("department is required")

type Workflow interface {
	Pending(ctx context.Context) ([]kpi.Transmission, error)
	AllValidated(ctx context.Context) (map[string]kpi.SystemStats, error)
}

type Directory interface {
	Members(ctx context.Context) ([]roster.Member, error)
}

type Auditor interface {
	Record(ctx context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error)
}

// Sealer encrypts written reports. A disabled sealer leaves them as plain PDF.
type Sealer interface {
	Enabled() bool
	Seal(plain []byte) ([]byte, error)
}

type Service struct {
	workflow  Workflow
	directory Directory
	audit     Auditor
	sealer    Sealer
	Now       func() time.Time
}

func NewService(workflow Workflow, directory Directory, audit Auditor, sealer Sealer) *Service {
	return &Service{workflow: workflow, directory: directory, audit: audit, sealer: sealer, Now: time.Now}
}

// Collect gathers the queue and validated figures of one department.
// Transmissions and stats are attributed through the registry when the
// submitter is still registered.
func (s *Service) Collect(ctx context.Context, department string) (UnitData, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return UnitData{}, ErrDepartmentRequired
	}
	data := UnitData{Department: department, GeneratedAt: s.Now().UTC()}

	members, err := s.directory.Members(ctx)
	if err != nil {
		return UnitData{}, err
	}
	byID := make(map[string]roster.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
		if strings.EqualFold(m.Department, department) {
			data.Members++
		}
	}

	pending, err := s.workflow.Pending(ctx)
	if err != nil {
		return UnitData{}, err
	}
	for _, t := range pending {
		d := t.Department
		if m, ok := byID[t.UserID]; ok {
			d = m.Department
		}
		if !strings.EqualFold(d, department) {
			continue
		}
		data.Queue = append(data.Queue, QueueRow{Transmission: t, Flagged: kpi.IsFlagged(t.SystemStats)})
	}

	validated, err := s.workflow.AllValidated(ctx)
	if err != nil {
		return UnitData{}, err
	}
	for userID, stats := range validated {
		m, ok := byID[userID]
		if !ok || !strings.EqualFold(m.Department, department) {
			continue
		}
		row := ValidatedRow{UserID: userID, Name: m.Name, Stats: stats}
		if metrics, err := kpi.ParseStats(stats); err == nil {
			row.PayoutMultiplier = kpi.PayoutMultiplier(metrics)
		}
		data.Validated = append(data.Validated, row)
	}
	sort.Slice(data.Validated, func(i, j int) bool {
		return data.Validated[i].Name < data.Validated[j].Name
	})
	return data, nil
}

// UnitReport renders the department report as a PDF.
func (s *Service) UnitReport(ctx context.Context, actor, department string) ([]byte, error) {
	data, err := s.Collect(ctx, department)
	if err != nil {
		return nil, err
	}
	out, err := Render(data)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		details := fmt.Sprintf("Unit report for %s (%d queued, %d validated)", data.Department, len(data.Queue), len(data.Validated))
		if _, err := s.audit.Record(ctx, actor, kpi.ActionReportGenerate, details, kpi.AuditInfo); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteUnitReport stores the report under dir and returns its path. The file
// is sealed to <name>.pdf.enc when encryption is configured.
func (s *Service) WriteUnitReport(ctx context.Context, actor, department, dir string) (string, error) {
	out, err := s.UnitReport(ctx, actor, department)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("unit-%s-%s.pdf", slug(department), s.Now().UTC().Format("20060102T150405"))
	filePath := filepath.Join(dir, name)

	if s.sealer != nil && s.sealer.Enabled() {
		sealed, err := s.sealer.Seal(out)
		if err != nil {
			return "", err
		}
		filePath += ".enc"
		if err := os.WriteFile(filePath, sealed, 0o600); err != nil {
			return "", err
		}
		return filePath, nil
	}
	if err := os.WriteFile(filePath, out, 0o644); err != nil {
		return "", err
	}
	return filePath, nil
}

// Render lays out a unit report.
func Render(data UnitData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Unit report "+data.Department, true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Unit Report")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Department: %s", data.Department))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", data.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Registered personnel: %d", data.Members))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Validation queue (%d)", len(data.Queue)))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	if len(data.Queue) == 0 {
		pdf.Cell(0, 6, "No transmissions awaiting review.")
		pdf.Ln(6)
	}
	for _, row := range data.Queue {
		t := row.Transmission
		mark := ""
		if row.Flagged {
			mark = "  [FLAGGED]"
		}
		pdf.Cell(0, 6, fmt.Sprintf("%s  %s  %s / %s / %s%s",
			t.Timestamp.UTC().Format("2006-01-02 15:04"), t.UserName, t.ResponseTime, t.Accuracy, t.Uptime, mark))
		pdf.Ln(6)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Validated figures (%d)", len(data.Validated)))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	if len(data.Validated) == 0 {
		pdf.Cell(0, 6, "No validated figures on record.")
		pdf.Ln(6)
	}
	for _, row := range data.Validated {
		pdf.Cell(0, 6, fmt.Sprintf("%s  %s / %s / %s  payout x%.4f",
			row.Name, row.Stats.ResponseTime, row.Stats.Accuracy, row.Stats.Uptime, row.PayoutMultiplier))
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func slug(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
