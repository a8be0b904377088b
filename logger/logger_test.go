package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSetupWriterLevels(t *testing.T) {
	tests := []struct {
		level   string
		debugOK bool
		infoOK  bool
	}{
		{"debug", true, true},
		{"", false, true},
		{"warn", false, false},
		{"ERROR", false, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		l := SetupWriter(&buf, tt.level, "text")
		l.Debug("dbg_event")
		l.Info("info_event")
		out := buf.String()
		if got := strings.Contains(out, "dbg_event"); got != tt.debugOK {
			t.Errorf("level %q: debug logged = %v, want %v", tt.level, got, tt.debugOK)
		}
		if got := strings.Contains(out, "info_event"); got != tt.infoOK {
			t.Errorf("level %q: info logged = %v, want %v", tt.level, got, tt.infoOK)
		}
	}
}

func TestSetupWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter(&buf, "info", "json")
	l.Info("catalog_resolved", "entries", 3)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"entries":3`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
	if L() != l {
		t.Error("L() should return the logger built by SetupWriter")
	}
}

func TestAccessMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter(&buf, "debug", "text")
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hola"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gaps?region=2", nil))

	out := buf.String()
	for _, want := range []string{"http_access", "status=418", "bytes=4", "path=/api/gaps"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log missing %q: %s", want, out)
		}
	}
}
