package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"localchat/internal/config"
	"localchat/internal/foundry"
	"localchat/internal/llm"
	"localchat/internal/manager"
	"localchat/internal/ollama"
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// buildManager constructs the enabled providers and the manager over them.
func buildManager(cfg config.Config, log zerolog.Logger) (*manager.Manager, error) {
	providers := []llm.Provider{foundry.New(foundry.Config{
		Endpoint:         cfg.Foundry.Endpoint,
		CLIPath:          cfg.Foundry.CLIPath,
		DisableCLI:       cfg.Foundry.DisableCLI,
		ProbePorts:       cfg.Foundry.ProbePorts,
		DiscoveryTimeout: time.Duration(cfg.Foundry.DiscoveryTimeoutSeconds) * time.Second,
		DownloadTimeout:  time.Duration(cfg.Foundry.DownloadTimeoutMinutes) * time.Minute,
		Logger:           log,
	})}
	if cfg.Ollama.Enabled {
		providers = append(providers, ollama.New(ollama.Config{Endpoint: cfg.Ollama.Endpoint, Logger: log}))
	}
	mgr := manager.New(manager.Config{
		DefaultProvider: cfg.DefaultProvider,
		Publisher:       manager.NewLogPublisher(log),
		Logger:          log,
	}, providers...)
	if _, err := mgr.Provider(""); err != nil {
		return nil, fmt.Errorf("default provider %q is not enabled (have %s)", cfg.DefaultProvider, strings.Join(mgr.Providers(), ", "))
	}
	return mgr, nil
}
