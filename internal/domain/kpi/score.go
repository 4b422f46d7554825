package kpi

import (
	"fmt"
	"math"
	"strings"
)

type MetricDef struct {
	ID      string  `json:"id" mapstructure:"id"`
	Label   string  `json:"label" mapstructure:"label"`
	Unit    string  `json:"unit" mapstructure:"unit"`
	Weight  float64 `json:"weight" mapstructure:"weight"`
	Target  float64 `json:"target" mapstructure:"target"`
	Inverse bool    `json:"inverse,omitempty" mapstructure:"inverse"`
}

type MetricTemplate []MetricDef

type Templates map[Role]MetricTemplate

func DefaultTemplates() Templates {
	return Templates{
		RoleEmployee: {
			{ID: MetricResponseTime, Label: "Avg Response Time", Unit: "ms", Weight: 40, Target: 300, Inverse: true},
			{ID: MetricAccuracy, Label: "Log Accuracy", Unit: "%", Weight: 30, Target: 98},
			{ID: MetricUptime, Label: "Node Uptime", Unit: "%", Weight: 30, Target: 99.9},
		},
		RoleSupervisor: {
			{ID: "teamCompliance", Label: "Team Compliance", Unit: "%", Weight: 40, Target: 98},
			{ID: "incidentResolution", Label: "Incident Resolution", Unit: "%", Weight: 30, Target: 99},
			{ID: "validationThroughput", Label: "Validation Throughput", Unit: "%", Weight: 30, Target: 99},
		},
		RoleDeptHead: {
			{ID: "budgetUtilization", Label: "Budget Utilization", Unit: "%", Weight: 40, Target: 96},
			{ID: "strategicAlignment", Label: "Strategic Alignment", Unit: "%", Weight: 30, Target: 90},
			{ID: "riskMitigation", Label: "Risk Mitigation", Unit: "%", Weight: 30, Target: 99},
		},
		RoleAdmin: {
			{ID: "globalUptime", Label: "Global Uptime", Unit: "%", Weight: 40, Target: 99.99},
			{ID: "threatLatency", Label: "Threat Latency", Unit: "ms", Weight: 30, Target: 50, Inverse: true},
			{ID: "nodeIntegrity", Label: "Node Integrity", Unit: "%", Weight: 30, Target: 100},
		},
		RoleExecutive: {
			{ID: "revenueGrowth", Label: "Revenue Growth", Unit: "%", Weight: 40, Target: 12},
			{ID: "clientRetention", Label: "Client Retention", Unit: "%", Weight: 30, Target: 95},
			{ID: "operationalMargin", Label: "Operational Margin", Unit: "%", Weight: 30, Target: 20},
		},
	}
}

// Merge returns a copy of t with the templates of other replacing same-role entries.
func (t Templates) Merge(other Templates) Templates {
	out := make(Templates, len(t))
	for role, tmpl := range t {
		out[role] = tmpl
	}
	for role, tmpl := range other {
		out[role] = tmpl
	}
	return out
}

func (t Templates) Validate() error {
	for _, role := range Roles() {
		if _, ok := t[role]; !ok {
			return fmt.Errorf("%w: no template for %s", ErrInvalidTemplate, role)
		}
	}
	for role, tmpl := range t {
		if !role.Valid() {
			return fmt.Errorf("%w: template for %q", ErrUnknownRole, role)
		}
		if err := tmpl.Validate(); err != nil {
			return fmt.Errorf("%s template: %w", role, err)
		}
	}
	return nil
}

func (m MetricTemplate) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("%w: no metrics", ErrInvalidTemplate)
	}
	seen := make(map[string]struct{}, len(m))
	total := 0.0
	for _, def := range m {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return fmt.Errorf("%w: metric id is required", ErrInvalidTemplate)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate metric %s", ErrInvalidTemplate, id)
		}
		seen[id] = struct{}{}
		if def.Weight < 0 {
			return fmt.Errorf("%w: metric %s has negative weight", ErrInvalidTemplate, id)
		}
		if def.Target <= 0 {
			return fmt.Errorf("%w: metric %s needs a positive target", ErrInvalidTemplate, id)
		}
		total += def.Weight
	}
	if math.Abs(total-100) > 1e-6 {
		return fmt.Errorf("%w: got %g", ErrTemplateWeights, total)
	}
	return nil
}

// Contribution is the weighted, capped ratio of one metric.
func Contribution(def MetricDef, actual float64) float64 {
	var ratio float64
	if def.Inverse {
		ratio = def.Target / actual
	} else {
		ratio = actual / def.Target
	}
	return math.Min(ratio, MaxRatio) * def.Weight
}

// Score sums the contributions of every metric in the template, rounded to
// one decimal place.
func Score(template MetricTemplate, actuals map[string]float64) (float64, error) {
	total := 0.0
	for _, def := range template {
		actual, ok := actuals[def.ID]
		if !ok {
			return 0, fmt.Errorf("%w: %s is missing", ErrInvalidMetric, def.ID)
		}
		if math.IsNaN(actual) || math.IsInf(actual, 0) {
			return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidMetric, def.ID)
		}
		total += Contribution(def, actual)
	}
	return math.Round(total*10) / 10, nil
}
