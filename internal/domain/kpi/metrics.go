package kpi

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MetricResponseTime = "responseTime"
	MetricAccuracy     = "accuracy"
	MetricUptime       = "uptime"
)

// Metrics is the parsed, range-checked form of SystemStats.
type Metrics struct {
	ResponseTimeMs float64 `json:"responseTimeMs"`
	AccuracyPct    float64 `json:"accuracyPct"`
	UptimePct      float64 `json:"uptimePct"`
}

// ParseStats validates reported figures at the ingestion boundary.
func ParseStats(stats SystemStats) (Metrics, error) {
	responseTime, err := parseMeasure(MetricResponseTime, stats.ResponseTime, "ms")
	if err != nil {
		return Metrics{}, err
	}
	accuracy, err := parseMeasure(MetricAccuracy, stats.Accuracy, "%")
	if err != nil {
		return Metrics{}, err
	}
	uptime, err := parseMeasure(MetricUptime, stats.Uptime, "%")
	if err != nil {
		return Metrics{}, err
	}

	if responseTime < 0 {
		return Metrics{}, fmt.Errorf("%w: %s must not be negative", ErrInvalidMetric, MetricResponseTime)
	}
	if accuracy < 0 || accuracy > 100 {
		return Metrics{}, fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalidMetric, MetricAccuracy)
	}
	if uptime < 0 || uptime > 100 {
		return Metrics{}, fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalidMetric, MetricUptime)
	}
	return Metrics{ResponseTimeMs: responseTime, AccuracyPct: accuracy, UptimePct: uptime}, nil
}

func parseMeasure(field, raw, unit string) (float64, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingMetric, field)
	}
	value = strings.TrimSpace(strings.TrimSuffix(value, unit))
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidMetric, field, raw)
	}
	return parsed, nil
}

// Stats formats the metrics back into their canonical string form.
func (m Metrics) Stats() SystemStats {
	return SystemStats{
		ResponseTime: formatNumber(m.ResponseTimeMs) + "ms",
		Accuracy:     formatNumber(m.AccuracyPct) + "%",
		Uptime:       formatNumber(m.UptimePct) + "%",
	}
}

// Actuals keys the metrics by the ids used in the employee template.
func (m Metrics) Actuals() map[string]float64 {
	return map[string]float64{
		MetricResponseTime: m.ResponseTimeMs,
		MetricAccuracy:     m.AccuracyPct,
		MetricUptime:       m.UptimePct,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var leadingFloatPattern = regexp.MustCompile(`^\s*[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)
var leadingIntPattern = regexp.MustCompile(`^\s*[-+]?\d+`)

func leadingInt(value string) (int64, bool) {
	match := leadingIntPattern.FindString(value)
	if match == "" {
		return 0, false
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(match), 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func leadingFloat(value string) (float64, bool) {
	match := leadingFloatPattern.FindString(value)
	if match == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(match), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// IsFlagged marks figures outside tolerance for queue triage. It never
// influences a transition.
func IsFlagged(stats SystemStats) bool {
	if rt, ok := leadingInt(stats.ResponseTime); ok && rt > FlagResponseTimeMs {
		return true
	}
	if acc, ok := leadingFloat(stats.Accuracy); ok && acc < FlagAccuracyPct {
		return true
	}
	return false
}

// PayoutMultiplier is accuracy × uptime, both as fractions.
func PayoutMultiplier(m Metrics) float64 {
	return (m.AccuracyPct / 100) * (m.UptimePct / 100)
}

func ProjectedYield(incentiveTarget, multiplier float64) float64 {
	return incentiveTarget * multiplier
}
