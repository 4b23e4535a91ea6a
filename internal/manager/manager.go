package manager

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"localchat/internal/llm"
)

type Manager struct {
	mu          sync.RWMutex
	providers   map[string]llm.Provider
	order       []string
	defaultName string

	pub EventPublisher
	log zerolog.Logger
}

// New constructs a Manager and registers providers in order.
func New(cfg Config, providers ...llm.Provider) *Manager {
	m := &Manager{
		providers:   make(map[string]llm.Provider),
		defaultName: strings.ToLower(strings.TrimSpace(cfg.DefaultProvider)),
		pub:         cfg.Publisher,
		log:         cfg.Logger,
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	for _, p := range providers {
		m.Register(p)
	}
	return m
}

// Register adds p, replacing any provider with the same name.
func (m *Manager) Register(p llm.Provider) {
	name := strings.ToLower(p.Name())
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; !ok {
		m.order = append(m.order, name)
	}
	m.providers[name] = p
	m.log.Debug().Str("provider", name).Msg("provider registered")
}

// SetEventPublisher installs an event publisher. Passing nil disables events.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		m.pub = noopPublisher{}
		return
	}
	m.pub = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	pub := m.pub
	m.mu.RUnlock()
	pub.Publish(e)
}

// Provider returns the provider called name; empty selects the default.
func (m *Manager) Provider(name string) (llm.Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.defaultName
		if name == "" && len(m.order) > 0 {
			name = m.order[0]
		}
	}
	p, ok := m.providers[name]
	if !ok {
		return nil, ErrProviderNotFound(name)
	}
	return p, nil
}

// Providers returns provider names in registration order.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) all() []llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]llm.Provider, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.providers[n])
	}
	return out
}

// Ready reports whether the default provider resolves.
func (m *Manager) Ready() bool {
	_, err := m.Provider("")
	return err == nil
}
