package foundry

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"localchat/internal/llm"
	"localchat/pkg/types"
)

var _ llm.Provider = (*Provider)(nil)

// Provider adapts one inference service instance to llm.Provider. Every
// Provider owns its endpoint and catalog caches.
type Provider struct {
	cfg     Config
	log     zerolog.Logger
	http    clients
	loc     *Locator
	catalog *Catalog
}

// New constructs a Provider. No I/O happens until the first call.
func New(cfg Config) *Provider {
	cfg = cfg.withDefaults()
	c := newClients(cfg)
	strategies := cfg.Strategies
	if strategies == nil {
		strategies = defaultStrategies(cfg, c)
	}
	log := cfg.Logger.With().Str("provider", ProviderName).Logger()
	loc := NewLocator(cfg.Endpoint, strategies, cfg.FallbackEndpoint, log)
	return &Provider{
		cfg:     cfg,
		log:     log,
		http:    c,
		loc:     loc,
		catalog: newCatalog(loc, c.short, log),
	}
}

func (p *Provider) Name() string { return ProviderName }

// Locator exposes the endpoint resolver.
func (p *Provider) Locator() *Locator { return p.loc }

// Catalog exposes the catalog cache.
func (p *Provider) Catalog() *Catalog { return p.catalog }

// Status resolves the endpoint and probes it.
func (p *Provider) Status(ctx context.Context) types.ProviderStatus {
	ep := p.loc.Resolve(ctx)
	st := types.ProviderStatus{Provider: ProviderName, Endpoint: ep.URL}
	if err := probe(ctx, p.http.short, ep.URL, p.cfg.ProbeTimeout); err != nil {
		st.Error = fmt.Sprintf("inference service not reachable at %s: %v", ep.URL, err)
		return st
	}
	st.Available = true
	return st
}

// Reconnect drops the cached endpoint and catalog and checks the service
// again. A pinned endpoint is probed directly; discovery never overrides it.
func (p *Provider) Reconnect(ctx context.Context) types.ProviderStatus {
	p.loc.Invalidate()
	if pinned, ok := p.loc.Pinned(); ok {
		st := types.ProviderStatus{Provider: ProviderName, Endpoint: pinned}
		if err := probe(ctx, p.http.short, pinned, p.cfg.ProbeTimeout); err != nil {
			p.log.Warn().Err(err).Str("endpoint", pinned).Msg("configured endpoint not responding")
			st.Error = fmt.Sprintf("Foundry Local is not responding at %s. Check that the service is running (`foundry service start`) or remove the configured endpoint to enable auto-discovery.", pinned)
			return st
		}
		st.Available = true
		return st
	}
	st := p.Status(ctx)
	p.log.Info().Str("endpoint", st.Endpoint).Bool("available", st.Available).Msg("reconnected")
	return st
}

// ListLocalModels returns downloaded and loaded models, enriched from the
// catalog when it is available.
func (p *Provider) ListLocalModels(ctx context.Context) []types.ModelRecord {
	local := p.localRecords(ctx)
	if len(local) == 0 {
		return local
	}
	merged := MergeModels(ProviderName, local, p.catalog.Entries(ctx))
	return merged[:len(local)]
}

// ListAvailableModels returns local models first, then catalog-only ones.
func (p *Provider) ListAvailableModels(ctx context.Context) []types.ModelRecord {
	local := p.localRecords(ctx)
	return MergeModels(ProviderName, local, p.catalog.Fetch(ctx))
}

func (p *Provider) localRecords(ctx context.Context) []types.ModelRecord {
	ep := p.loc.Resolve(ctx)
	local, err := p.fetchModels(ctx, ep.URL, "/openai/models")
	if err != nil {
		p.log.Warn().Err(err).Str("endpoint", ep.URL).Msg("list local models failed")
		return []types.ModelRecord{}
	}
	loaded := map[string]bool{}
	if lm, err := p.fetchModels(ctx, ep.URL, "/openai/loadedmodels"); err != nil {
		p.log.Debug().Err(err).Msg("list loaded models failed")
	} else {
		for _, m := range lm {
			loaded[strings.ToLower(m.ID)] = true
		}
	}
	return toRecords(ProviderName, local, loaded)
}

func (p *Provider) fetchModels(ctx context.Context, base, path string) ([]localModel, error) {
	b, err := getBody(ctx, p.http.short, joinURL(base, path))
	if err != nil {
		return nil, err
	}
	ms, err := parseLocalModels(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ms, nil
}
