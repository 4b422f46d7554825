package handlers_test

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestUnitReportDownloadAndQueuedJob(t *testing.T) {
	cfg := testConfig(t)
	_, ts := startApp(t, cfg)
	client := ts.Client()

	admin := login(t, client, ts.URL, "Root", "admin", "")
	provision(t, client, ts.URL, admin, "Ada Lovelace", "employee", "Operations")
	provision(t, client, ts.URL, admin, "Grace Hopper", "supervisor", "Operations")
	employee := login(t, client, ts.URL, "Ada Lovelace", "employee", "123456")
	submit(t, client, ts.URL, employee, "310", "97", "99.9")

	status, raw, header := do(t, client, http.MethodGet, ts.URL+"/api/v1/reports/unit?department=Operations", admin, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, string(raw))
	}
	if header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(raw, []byte("%PDF-")) {
		t.Fatalf("expected a PDF, got %q", header.Get("Content-Type"))
	}

	// A supervisor is held to their own department whatever they ask for.
	supervisor := login(t, client, ts.URL, "Grace Hopper", "supervisor", "123456")
	status, _, _ = do(t, client, http.MethodGet, ts.URL+"/api/v1/reports/unit?department=Engineering", supervisor, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for a supervisor report, got %d", status)
	}
	audit := envelopeDataSlice(t, getJSON(t, client, ts.URL+"/api/v1/audit?action=REPORT_GENERATE", admin))
	if len(audit) != 2 || !strings.Contains(audit[0]["details"].(string), "Operations") {
		t.Fatalf("expected two Operations report entries, got %+v", audit)
	}

	run := envelopeDataMap(t, postJSONStatus(t, client, ts.URL+"/api/v1/reports/unit?department=Operations", admin, nil, http.StatusAccepted))
	runID, _ := run["id"].(string)
	final := waitForRun(t, client, ts.URL, admin, runID)
	if final["status"] != "completed" {
		t.Fatalf("expected completed report job, got %+v", final)
	}
	details, _ := final["details"].(map[string]any)
	file, _ := details["file"].(string)
	if filepath.Dir(file) != cfg.ReportDir {
		t.Fatalf("expected report under %s, got %q", cfg.ReportDir, file)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("expected report file: %v", err)
	}
}

func TestSnapshotJobWritesArchive(t *testing.T) {
	cfg := testConfig(t)
	_, ts := startApp(t, cfg)
	client := ts.Client()

	admin := login(t, client, ts.URL, "Root", "admin", "")
	run := envelopeDataMap(t, postJSONStatus(t, client, ts.URL+"/api/v1/jobs/snapshot", admin, nil, http.StatusAccepted))
	final := waitForRun(t, client, ts.URL, admin, run["id"].(string))
	if final["status"] != "completed" {
		t.Fatalf("expected completed snapshot, got %+v", final)
	}

	entries, err := os.ReadDir(cfg.SnapshotDir)
	if err != nil {
		t.Fatalf("read snapshot dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".kpi.zst") {
		t.Fatalf("expected one snapshot archive, got %+v", entries)
	}

	runs := envelopeDataSlice(t, getJSON(t, client, ts.URL+"/api/v1/jobs?type=store_snapshot", admin))
	if len(runs) != 1 {
		t.Fatalf("expected one snapshot run, got %d", len(runs))
	}

	supervisor := login(t, client, ts.URL, "Grace", "supervisor", "")
	getJSONStatus(t, client, ts.URL+"/api/v1/jobs", supervisor, http.StatusForbidden)
}

func waitForRun(t *testing.T, client *http.Client, baseURL, token, runID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		run := envelopeDataMap(t, getJSON(t, client, baseURL+"/api/v1/jobs/"+runID, token))
		if status := run["status"]; status == "completed" || status == "failed" {
			return run
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s did not finish: %+v", runID, run)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
