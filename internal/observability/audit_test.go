package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestAuditWritesEventWithRequestFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.Header.Set("X-Request-Id", "req-test-1")

	Audit(req, "auth.login", "outcome", "locked", "email", "jdoe@reichmanjorgensen.com")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	want := map[string]string{
		"msg":        "audit",
		"event":      "auth.login",
		"method":     "POST",
		"path":       "/api/auth/login",
		"request_id": "req-test-1",
		"outcome":    "locked",
		"email":      "jdoe@reichmanjorgensen.com",
	}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("expected %s=%q, got %v", k, v, line[k])
		}
	}
	if _, ok := line["trace_id"]; ok {
		t.Fatal("did not expect trace_id without an active span")
	}
}
