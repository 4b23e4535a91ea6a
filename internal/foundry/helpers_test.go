package foundry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"localchat/pkg/types"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// fakeRunner records CLI invocations and returns canned output.
type fakeRunner struct {
	out   string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(f.out), f.err
}

// countingTransport counts round trips without performing any.
type countingTransport struct{ n atomic.Int32 }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.n.Add(1)
	return nil, http.ErrServerClosed
}

// stubStrategy returns a fixed answer and counts calls.
type stubStrategy struct {
	name  string
	url   string
	delay time.Duration
	calls atomic.Int32
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) TryResolve(ctx context.Context) (string, bool) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.url, s.url != ""
}

// fakeService is an in-process stand-in for the inference service. Fields
// are set before the server starts.
type fakeService struct {
	catalog  string
	models   string
	loaded   string
	modelDir string

	chat     http.HandlerFunc
	download http.HandlerFunc

	loads   atomic.Int32
	unloads atomic.Int32
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/openai/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"endpoints":["x"],"modelDirPath":` + strconv.Quote(f.modelDir) + `}`))
	})
	mux.HandleFunc("/foundry/list", func(w http.ResponseWriter, r *http.Request) {
		body := f.catalog
		if body == "" {
			body = "[]"
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/openai/models", func(w http.ResponseWriter, r *http.Request) {
		body := f.models
		if body == "" {
			body = "[]"
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/openai/loadedmodels", func(w http.ResponseWriter, r *http.Request) {
		body := f.loaded
		if body == "" {
			body = "[]"
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/openai/load/", func(w http.ResponseWriter, r *http.Request) {
		f.loads.Add(1)
	})
	mux.HandleFunc("/openai/unload/", func(w http.ResponseWriter, r *http.Request) {
		f.unloads.Add(1)
		if r.URL.Query().Get("force") != "true" {
			http.Error(w, "force missing", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if f.chat == nil {
			http.NotFound(w, r)
			return
		}
		f.chat(w, r)
	})
	mux.HandleFunc("/openai/download", func(w http.ResponseWriter, r *http.Request) {
		if f.download == nil {
			http.NotFound(w, r)
			return
		}
		f.download(w, r)
	})
	return mux
}

// newTestProvider starts f and returns a Provider pinned to it.
func newTestProvider(t *testing.T, f *fakeService) (*Provider, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(f.handler())
	t.Cleanup(ts.Close)
	p := New(Config{
		Endpoint:     ts.URL,
		Runner:       &fakeRunner{},
		PollInterval: 20 * time.Millisecond,
	})
	return p, ts
}

// writeLines writes each line followed by a newline and flushes.
func writeLines(w http.ResponseWriter, lines ...string) {
	for _, l := range lines {
		_, _ = w.Write([]byte(l + "\n"))
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
}

func drainChat(t *testing.T, ch <-chan types.ChatDelta) []types.ChatDelta {
	t.Helper()
	var out []types.ChatDelta
	timeout := time.After(5 * time.Second)
	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, d)
		case <-timeout:
			t.Fatalf("chat stream did not close; got %d deltas", len(out))
		}
	}
}

func drainDownload(t *testing.T, ch <-chan types.DownloadProgress) []types.DownloadProgress {
	t.Helper()
	var out []types.DownloadProgress
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("download stream did not close; got %d events", len(out))
		}
	}
}
