package httpapi

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"localchat/pkg/types"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"INFO":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	// query param ?log=debug
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	// shorthand ?log=1
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	// header X-Log-Level
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
}

func TestRequestLogLevel_Default(t *testing.T) {
	orig := defaultLogLevel
	defer func() { defaultLogLevel = orig }()
	SetDefaultLogLevel("info")
	if got := requestLogLevel(httptest.NewRequest("GET", "/x", nil)); got != LevelInfo {
		t.Fatalf("default level=%v", got)
	}
}

func TestLoggingLineWriter_SplitsLines(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	lw := &loggingLineWriter{log: &log}
	_, _ = lw.Write([]byte("a line\npartial"))
	_, _ = lw.Write([]byte("-cont\nlast\n"))

	out := buf.String()
	if !strings.Contains(out, `"line":"a line"`) {
		t.Fatalf("missing logged line: %q", out)
	}
	if !strings.Contains(out, `"line":"partial-cont"`) {
		t.Fatalf("missing joined line: %q", out)
	}
	if !strings.Contains(out, `"line":"last"`) {
		t.Fatalf("missing last line: %q", out)
	}
	if n := strings.Count(out, `"message":"stream>"`); n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
}

func TestChatDebugLogsStreamLines(t *testing.T) {
	var buf bytes.Buffer
	orig := zlog
	defer SetLogger(orig)
	SetLogger(zerolog.New(&buf))

	svc := &mockService{deltas: []types.ChatDelta{{Content: "hi"}, {Done: true}}}
	NewMux(svc).ServeHTTP(httptest.NewRecorder(), postJSON("/api/chat?log=debug", `{"model":"m","messages":[{"role":"user","content":"x"}]}`))
	out := buf.String()
	if !strings.Contains(out, "chat start") || !strings.Contains(out, "chat end") {
		t.Fatalf("missing start/end: %q", out)
	}
	if !strings.Contains(out, `data: {\"content\":\"hi\"`) {
		t.Fatalf("missing stream line: %q", out)
	}
}
