package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func checkLoaded(t *testing.T, cfg Config) {
	t.Helper()
	if cfg.Addr != ":9999" || cfg.DefaultProvider != "ollama" || cfg.ChatTimeoutSeconds != 30 {
		t.Fatalf("unexpected top-level cfg: %+v", cfg)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.Origins) != 1 || cfg.CORS.Origins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors: %+v", cfg.CORS)
	}
	if cfg.Foundry.Endpoint != "http://127.0.0.1:5273" || len(cfg.Foundry.ProbePorts) != 2 || cfg.Foundry.ProbePorts[1] != 5274 {
		t.Fatalf("unexpected foundry: %+v", cfg.Foundry)
	}
	if !cfg.Ollama.Enabled {
		t.Fatalf("unexpected ollama: %+v", cfg.Ollama)
	}
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: ":9999"
default_provider: ollama
chat_timeout_seconds: 30
cors:
  enabled: true
  origins: ["http://localhost:3000"]
foundry:
  endpoint: http://127.0.0.1:5273
  probe_ports: [5273, 5274]
ollama:
  enabled: true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkLoaded(t, cfg)
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":9999","default_provider":"ollama","chat_timeout_seconds":30,
"cors":{"enabled":true,"origins":["http://localhost:3000"]},
"foundry":{"endpoint":"http://127.0.0.1:5273","probe_ports":[5273,5274]},
"ollama":{"enabled":true}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkLoaded(t, cfg)
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `addr = ":9999"
default_provider = "ollama"
chat_timeout_seconds = 30

[cors]
enabled = true
origins = ["http://localhost:3000"]

[foundry]
endpoint = "http://127.0.0.1:5273"
probe_ports = [5273, 5274]

[ollama]
enabled = true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkLoaded(t, cfg)
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.Ollama.Enabled = true
	cfg.ChatTimeoutSeconds = -1
	cfg.ApplyDefaults()
	if cfg.Addr != DefaultAddr || cfg.LogLevel != "info" || cfg.DefaultProvider != "foundry" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxBodyBytes != 1<<20 || cfg.ChatTimeoutSeconds != 0 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.Ollama.Endpoint != DefaultOllamaEndpoint || cfg.Foundry.DownloadTimeoutMinutes != 240 {
		t.Fatalf("unexpected provider defaults: %+v %+v", cfg.Foundry, cfg.Ollama)
	}
	if cfg.Foundry.Endpoint != "" {
		t.Fatal("foundry endpoint must stay empty to keep auto-discovery")
	}
}

func TestApplyDefaults_KeepsValues(t *testing.T) {
	cfg := Config{Addr: ":1", MaxBodyBytes: 10, Ollama: Ollama{Endpoint: "http://x"}}
	cfg.ApplyDefaults()
	if cfg.Addr != ":1" || cfg.MaxBodyBytes != 10 || cfg.Ollama.Endpoint != "http://x" {
		t.Fatalf("values overwritten: %+v", cfg)
	}
}
