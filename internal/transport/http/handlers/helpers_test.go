package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kpiconsole/internal/app/server"
	"kpiconsole/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Addr:               ":0",
		Environment:        config.EnvTest,
		LogLevel:           "error",
		LogFormat:          "text",
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		StoreDriver:        config.StoreMemory,
		DepartmentSecret:   "unit-secret",
		DefaultPasskey:     "123456",
		SeedDepartments:    []string{"Operations", "Engineering"},
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		SnapshotDir:        t.TempDir(),
		SnapshotKeep:       3,
		ReportDir:          t.TempDir(),
	}
}

// startApp runs the full router with background workers against cfg.
func startApp(t *testing.T, cfg config.Config) (*server.App, *httptest.Server) {
	t.Helper()
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		app.Close()
	})
	return app, ts
}

func login(t *testing.T, client *http.Client, baseURL, name, role, passkey string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"name":    name,
		"role":    role,
		"passkey": passkey,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func provision(t *testing.T, client *http.Client, baseURL, token, name, role, department string) map[string]any {
	t.Helper()
	env := postJSONStatus(t, client, baseURL+"/api/v1/admin/personnel", token, map[string]any{
		"name":       name,
		"role":       role,
		"department": department,
	}, http.StatusCreated)
	return envelopeDataMap(t, env)
}

func submit(t *testing.T, client *http.Client, baseURL, token, responseTime, accuracy, uptime string) map[string]any {
	t.Helper()
	env := postJSONStatus(t, client, baseURL+"/api/v1/transmissions", token, map[string]any{
		"responseTime": responseTime,
		"accuracy":     accuracy,
		"uptime":       uptime,
	}, http.StatusCreated)
	return envelopeDataMap(t, env)
}

func do(t *testing.T, client *http.Client, method, url, token string, body any, headers map[string]string) (int, []byte, http.Header) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp.StatusCode, raw, resp.Header
}

func decodeEnvelope(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", string(raw), err)
	}
	return env
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	status, raw, _ := do(t, client, http.MethodPost, url, token, body, nil)
	if status >= 400 {
		t.Fatalf("unexpected status %d: %s", status, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func postJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) envelope {
	t.Helper()
	status, raw, _ := do(t, client, http.MethodPost, url, token, body, nil)
	if status != want {
		t.Fatalf("expected status %d, got %d: %s", want, status, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func postJSONAnyStatusWithHeaders(t *testing.T, client *http.Client, url, token string, body any, headers map[string]string) (int, envelope, http.Header) {
	t.Helper()
	status, raw, header := do(t, client, http.MethodPost, url, token, body, headers)
	return status, decodeEnvelope(t, raw), header
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	return getJSONStatus(t, client, url, token, http.StatusOK)
}

func getJSONStatus(t *testing.T, client *http.Client, url, token string, want int) envelope {
	t.Helper()
	status, raw, _ := do(t, client, http.MethodGet, url, token, nil, nil)
	if status != want {
		t.Fatalf("expected status %d, got %d: %s", want, status, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func envelopeErrorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	if m, ok := env.Error.(map[string]any); ok {
		if code, ok := m["code"].(string); ok {
			return code
		}
	}
	return ""
}

func assertValidationErrorField(t *testing.T, env envelope, field string) {
	t.Helper()
	if code := envelopeErrorCode(env); code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", env.Error)
	}
	errMap, ok := env.Error.(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %T", env.Error)
	}
	details, ok := errMap["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %+v", errMap["details"])
	}
	fieldsRaw, ok := details["fields"].([]any)
	if !ok {
		t.Fatalf("expected details.fields array, got %+v", details["fields"])
	}
	for _, item := range fieldsRaw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if value, _ := entry["field"].(string); value == field {
			return
		}
	}
	t.Fatalf("expected validation error for field %q, got %+v", field, fieldsRaw)
}

func envelopeDataSlice(t *testing.T, env envelope) []map[string]any {
	t.Helper()
	var payload []map[string]any
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("failed to decode array payload: %v", err)
	}
	return payload
}

func envelopeDataMap(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("failed to decode object payload: %v", err)
	}
	return payload
}
