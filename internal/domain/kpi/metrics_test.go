package kpi

import (
	"errors"
	"testing"
)

func TestParseStatsAcceptsUnits(t *testing.T) {
	m, err := ParseStats(SystemStats{ResponseTime: " 285 ms", Accuracy: "97.5%", Uptime: "99.8"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ResponseTimeMs != 285 || m.AccuracyPct != 97.5 || m.UptimePct != 99.8 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	stats := m.Stats()
	if stats.ResponseTime != "285ms" || stats.Accuracy != "97.5%" || stats.Uptime != "99.8%" {
		t.Fatalf("unexpected canonical stats: %+v", stats)
	}
}

func TestParseStatsMissingField(t *testing.T) {
	_, err := ParseStats(SystemStats{ResponseTime: "285", Accuracy: "", Uptime: "99"})
	if !errors.Is(err, ErrMissingMetric) {
		t.Fatalf("expected ErrMissingMetric, got %v", err)
	}
}

func TestParseStatsRejectsGarbageAndRanges(t *testing.T) {
	cases := []SystemStats{
		{ResponseTime: "fast", Accuracy: "98", Uptime: "99"},
		{ResponseTime: "-1", Accuracy: "98", Uptime: "99"},
		{ResponseTime: "200", Accuracy: "101", Uptime: "99"},
		{ResponseTime: "200", Accuracy: "98", Uptime: "-0.5%"},
		{ResponseTime: "NaN", Accuracy: "98", Uptime: "99"},
		{ResponseTime: "200", Accuracy: "Inf", Uptime: "99"},
	}
	for _, tc := range cases {
		if _, err := ParseStats(tc); !errors.Is(err, ErrInvalidMetric) {
			t.Fatalf("expected ErrInvalidMetric for %+v, got %v", tc, err)
		}
	}
}

func TestIsFlaggedBoundaries(t *testing.T) {
	cases := []struct {
		stats   SystemStats
		flagged bool
	}{
		{SystemStats{ResponseTime: "251ms", Accuracy: "99%", Uptime: "99.9%"}, true},
		{SystemStats{ResponseTime: "250ms", Accuracy: "99%", Uptime: "99.9%"}, false},
		{SystemStats{ResponseTime: "200ms", Accuracy: "96.9%", Uptime: "99.9%"}, true},
		{SystemStats{ResponseTime: "200ms", Accuracy: "97%", Uptime: "99.9%"}, false},
		{SystemStats{ResponseTime: "250.9ms", Accuracy: "97%", Uptime: "99.9%"}, false},
		{SystemStats{ResponseTime: "n/a", Accuracy: "n/a", Uptime: "99.9%"}, false},
	}
	for _, tc := range cases {
		if got := IsFlagged(tc.stats); got != tc.flagged {
			t.Fatalf("IsFlagged(%+v) = %v, want %v", tc.stats, got, tc.flagged)
		}
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("department head")
	if err != nil || role != RoleDeptHead {
		t.Fatalf("unexpected role %q err %v", role, err)
	}
	role, err = ParseRole("Administrator")
	if err != nil || role != RoleAdmin {
		t.Fatalf("unexpected role %q err %v", role, err)
	}
	if _, err := ParseRole("janitor"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestUserIDStableAcrossSpacingAndCase(t *testing.T) {
	if UserID("Steve  Rogers") != UserID(" steve rogers ") {
		t.Fatal("expected normalised names to share an id")
	}
	if UserID("Steve Rogers") == UserID("Natasha Romanoff") {
		t.Fatal("expected different names to differ")
	}
	if Email("Steve Rogers") != "steverogers@aa2001.com" {
		t.Fatalf("unexpected email %s", Email("Steve Rogers"))
	}
}
