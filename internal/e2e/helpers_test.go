package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"localchat/internal/foundry"
	"localchat/internal/httpapi"
	"localchat/internal/manager"
	"localchat/pkg/types"
)

const catalogJSON = `[
 {"name":"Phi-3.5-mini-instruct-generic-cpu","displayName":"Phi-3.5 Mini","alias":"phi-3.5-mini","publisher":"Microsoft",
  "fileSizeMb":2048,"task":"chat-completion","version":"1","runtime":{"deviceType":"CPU"}},
 {"name":"qwen2.5-0.5b-instruct-generic-cpu","alias":"qwen2.5-0.5b","publisher":"Qwen","fileSizeMb":"512","version":"3"}
]`

// fakeFoundry is an in-process stand-in for the inference service.
type fakeFoundry struct {
	modelDir string
	models   string
}

func (f *fakeFoundry) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/openai/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"modelDirPath":` + strconv.Quote(f.modelDir) + `}`))
	})
	mux.HandleFunc("/foundry/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catalogJSON))
	})
	mux.HandleFunc("/openai/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.models))
	})
	mux.HandleFunc("/openai/loadedmodels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/openai/load/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/openai/unload/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range []string{
			`data: {"choices":[{"delta":{"content":"Waves "}}]}`,
			`data: {"choices":[{"delta":{"content":"on stone"}}]}`,
			`data: [DONE]`,
		} {
			_, _ = w.Write([]byte(l + "\n\n"))
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/openai/download", func(w http.ResponseWriter, r *http.Request) {
		for _, l := range []string{"Total 10.0% Downloading", "Total 60.0% Downloading", "Total 100.0% Downloading", `{"success": true, "errorMessage": null}`} {
			_, _ = w.Write([]byte(l + "\n"))
			w.(http.Flusher).Flush()
		}
	})
	return mux
}

// newStack wires fake service -> foundry provider -> manager -> HTTP API.
func newStack(t *testing.T, f *fakeFoundry) (*httptest.Server, *manager.MemoryPublisher) {
	t.Helper()
	if f.models == "" {
		f.models = `[]`
	}
	svc := httptest.NewServer(f.handler())
	t.Cleanup(svc.Close)
	fp := foundry.New(foundry.Config{Endpoint: svc.URL, PollInterval: 20 * time.Millisecond})
	pub := manager.NewMemoryPublisher()
	mgr := manager.New(manager.Config{DefaultProvider: foundry.ProviderName, Publisher: pub}, fp)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return srv, pub
}

func mkModelDir(t *testing.T, root, publisher, name string) string {
	t.Helper()
	p := filepath.Join(root, publisher, name)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", p, err)
	}
	if err := os.WriteFile(filepath.Join(p, "model.onnx"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func do(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json: %v body=%s", err, string(body))
	}
	return v
}

// events decodes every "data:" line of an event-stream body.
func events[T any](t *testing.T, body []byte) []T {
	t.Helper()
	var out []T
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		out = append(out, decode[T](t, []byte(strings.TrimPrefix(line, "data: "))))
	}
	return out
}

func chatRequest(model, prompt string) types.ChatRequest {
	return types.ChatRequest{Model: model, Messages: []types.ChatMessage{{Role: "user", Content: prompt}}, MaxTokens: 128}
}
