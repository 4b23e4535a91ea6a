package e2e

import (
	"net/http"
	"os"
	"strings"
	"testing"

	"localchat/internal/manager"
	"localchat/pkg/types"
)

func TestE2E_StatusAndModels(t *testing.T) {
	root := t.TempDir()
	srv, _ := newStack(t, &fakeFoundry{modelDir: root, models: `["Phi-3.5-mini-instruct-generic-cpu:1"]`})

	resp, body := do(t, http.MethodGet, srv.URL+"/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/status %d %s", resp.StatusCode, string(body))
	}
	sts := decode[[]types.ProviderStatus](t, body)
	if len(sts) != 1 || !sts[0].Available {
		t.Fatalf("statuses=%+v", sts)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/models", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/models %d %s", resp.StatusCode, string(body))
	}
	models := decode[[]types.ModelRecord](t, body)
	if len(models) != 2 {
		t.Fatalf("expected local + one catalog-only model, got %+v", models)
	}
	if models[0].Status != types.ModelDownloaded || models[0].Name != "Phi-3.5 Mini" || models[0].SizeBytes != 2048*1048576 {
		t.Fatalf("local model not enriched: %+v", models[0])
	}
	if models[1].Status != types.ModelAvailable || models[1].SizeBytes != 512*1048576 {
		t.Fatalf("catalog model: %+v", models[1])
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/models/loaded", nil)
	if local := decode[[]types.ModelRecord](t, body); len(local) != 1 {
		t.Fatalf("loaded=%+v", local)
	}
}

func TestE2E_ChatStream(t *testing.T) {
	srv, _ := newStack(t, &fakeFoundry{modelDir: t.TempDir()})
	resp, body := do(t, http.MethodPost, srv.URL+"/api/chat", []byte(`{"model":"phi-3.5-mini","messages":[{"role":"user","content":"haiku"}]}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/chat %d %s", resp.StatusCode, string(body))
	}
	deltas := events[types.ChatDelta](t, body)
	var text strings.Builder
	for _, d := range deltas {
		text.WriteString(d.Content)
	}
	if text.String() != "Waves on stone" {
		t.Fatalf("text=%q deltas=%+v", text.String(), deltas)
	}
	if last := deltas[len(deltas)-1]; !last.Done || last.Error != "" {
		t.Fatalf("last=%+v", last)
	}
}

func TestE2E_ChatValidation(t *testing.T) {
	srv, _ := newStack(t, &fakeFoundry{modelDir: t.TempDir()})
	resp, body := do(t, http.MethodPost, srv.URL+"/api/chat", []byte(`{"model":"m","messages":[]}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", resp.StatusCode, string(body))
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/chat?provider=nope", []byte(`{"model":"m","messages":[{"role":"user","content":"x"}]}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown provider, got %d", resp.StatusCode)
	}
}

func TestE2E_DownloadStream(t *testing.T) {
	srv, pub := newStack(t, &fakeFoundry{modelDir: t.TempDir()})
	resp, body := do(t, http.MethodPost, srv.URL+"/api/models/download", []byte(`{"modelId":"phi-3.5-mini"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download %d %s", resp.StatusCode, string(body))
	}
	progress := events[types.DownloadProgress](t, body)
	if progress[0].Status != types.DownloadStarting {
		t.Fatalf("first=%+v", progress[0])
	}
	last := progress[len(progress)-1]
	if last.Status != types.DownloadComplete || last.Percent == nil || *last.Percent != 100 {
		t.Fatalf("last=%+v", last)
	}
	if len(pub.Named(manager.EventDownloadDone)) != 1 {
		t.Fatalf("events=%+v", pub.Events())
	}
}

func TestE2E_DownloadUnknownModel(t *testing.T) {
	srv, pub := newStack(t, &fakeFoundry{modelDir: t.TempDir()})
	_, body := do(t, http.MethodPost, srv.URL+"/api/models/download", []byte(`{"modelId":"no-such-model"}`))
	progress := events[types.DownloadProgress](t, body)
	if last := progress[len(progress)-1]; !strings.HasPrefix(last.Status, "error") {
		t.Fatalf("last=%+v", last)
	}
	if len(pub.Named(manager.EventDownloadError)) != 1 {
		t.Fatalf("events=%+v", pub.Events())
	}
}

func TestE2E_Delete(t *testing.T) {
	root := t.TempDir()
	target := mkModelDir(t, root, "Microsoft", "Phi-3.5-mini-instruct-generic-cpu-1")
	srv, pub := newStack(t, &fakeFoundry{modelDir: root})

	resp, body := do(t, http.MethodDelete, srv.URL+"/api/models/Phi-3.5-mini-instruct-generic-cpu:1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete %d %s", resp.StatusCode, string(body))
	}
	if r := decode[types.DeleteResponse](t, body); !r.Success {
		t.Fatalf("response=%+v", r)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("model dir still present: %v", err)
	}

	resp, body = do(t, http.MethodDelete, srv.URL+"/api/models/Phi-3.5-mini-instruct-generic-cpu:1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete %d %s", resp.StatusCode, string(body))
	}
	if r := decode[types.DeleteResponse](t, body); r.Success {
		t.Fatalf("response=%+v", r)
	}
	if len(pub.Named(manager.EventDeleteDone)) != 1 || len(pub.Named(manager.EventDeleteFailed)) != 1 {
		t.Fatalf("events=%+v", pub.Events())
	}
}

func TestE2E_Reconnect(t *testing.T) {
	srv, pub := newStack(t, &fakeFoundry{modelDir: t.TempDir()})
	resp, body := do(t, http.MethodPost, srv.URL+"/api/reconnect", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconnect %d %s", resp.StatusCode, string(body))
	}
	if st := decode[types.ProviderStatus](t, body); !st.Available {
		t.Fatalf("status=%+v", st)
	}
	if len(pub.Named(manager.EventReconnect)) != 1 {
		t.Fatalf("events=%+v", pub.Events())
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d", resp.StatusCode)
	}
}
