package foundry

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Endpoint sources, in resolution order.
const (
	SourceConfig   = "config"
	SourceCache    = "cache"
	SourceCLI      = "cli"
	SourcePortScan = "port-scan"
	SourceDefault  = "default"
)

// Endpoint is a resolved base URL (scheme://host:port) of the service.
type Endpoint struct {
	URL    string
	Source string
}

// DiscoveryStrategy tries one way of finding a live service endpoint.
// It returns ok=false on any failure; errors are not surfaced.
type DiscoveryStrategy interface {
	Name() string
	TryResolve(ctx context.Context) (url string, ok bool)
}

// Locator resolves the service endpoint once per process and caches it until
// Invalidate. A pinned endpoint short-circuits everything and is never cached.
type Locator struct {
	pinned     string
	strategies []DiscoveryStrategy
	fallback   string
	log        zerolog.Logger

	mu         sync.RWMutex
	cached     string
	gen        uint64 // bumped by Invalidate
	dependents []func()

	group singleflight.Group
}

// NewLocator builds a Locator. pinned may be empty.
func NewLocator(pinned string, strategies []DiscoveryStrategy, fallback string, log zerolog.Logger) *Locator {
	return &Locator{
		pinned:     strings.TrimRight(strings.TrimSpace(pinned), "/"),
		strategies: strategies,
		fallback:   fallback,
		log:        log,
	}
}

// Pinned returns the configured endpoint, if any.
func (l *Locator) Pinned() (string, bool) {
	return l.pinned, l.pinned != ""
}

// OnInvalidate registers fn to run whenever the cached endpoint is dropped.
func (l *Locator) OnInvalidate(fn func()) {
	l.mu.Lock()
	l.dependents = append(l.dependents, fn)
	l.mu.Unlock()
}

// Invalidate clears the cached endpoint and every dependent cache.
func (l *Locator) Invalidate() {
	l.mu.Lock()
	l.cached = ""
	l.gen++
	deps := append([]func(){}, l.dependents...)
	l.mu.Unlock()
	for _, fn := range deps {
		fn()
	}
}

// Resolve returns the current endpoint. It never fails: when nothing answers,
// the hardcoded fallback is returned uncached with Source "default", and
// callers must treat it as best-effort.
func (l *Locator) Resolve(ctx context.Context) Endpoint {
	if l.pinned != "" {
		return Endpoint{URL: l.pinned, Source: SourceConfig}
	}
	l.mu.RLock()
	cached, gen := l.cached, l.gen
	l.mu.RUnlock()
	if cached != "" {
		return Endpoint{URL: cached, Source: SourceCache}
	}
	// Concurrent first callers share one discovery run. It is detached from
	// any single caller so one canceled request cannot hand the fallback to
	// the others; each strategy bounds its own runtime.
	dctx := context.WithoutCancel(ctx)
	ch := l.group.DoChan("discover-"+strconv.FormatUint(gen, 10), func() (any, error) {
		return l.discover(dctx, gen), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Endpoint)
	case <-ctx.Done():
		return Endpoint{URL: l.fallback, Source: SourceDefault}
	}
}

// discover runs the strategies in order. A hit is cached only when no
// Invalidate happened since gen was read.
func (l *Locator) discover(ctx context.Context, gen uint64) Endpoint {
	for _, s := range l.strategies {
		start := time.Now()
		url, ok := s.TryResolve(ctx)
		if !ok {
			discoveryTotal.WithLabelValues(s.Name(), "miss").Inc()
			l.log.Debug().Str("method", s.Name()).Dur("dur", time.Since(start)).Msg("endpoint discovery miss")
			continue
		}
		url = strings.TrimRight(url, "/")
		discoveryTotal.WithLabelValues(s.Name(), "hit").Inc()
		l.log.Info().Str("method", s.Name()).Str("endpoint", url).Dur("dur", time.Since(start)).Msg("endpoint discovered")
		l.mu.Lock()
		if l.gen == gen {
			l.cached = url
		}
		l.mu.Unlock()
		return Endpoint{URL: url, Source: s.Name()}
	}
	discoveryTotal.WithLabelValues(SourceDefault, "fallback").Inc()
	l.log.Warn().Str("endpoint", l.fallback).Msg("endpoint discovery failed; using default")
	return Endpoint{URL: l.fallback, Source: SourceDefault}
}

// urlPattern matches the first scheme://host:port in CLI output.
var urlPattern = regexp.MustCompile(`https?://[A-Za-z0-9.\-\[\]]+:\d+`)

// CLIStrategy runs `<cli> service status` and extracts the first URL printed.
type CLIStrategy struct {
	Path    string
	Timeout time.Duration
	Runner  CommandRunner
	Log     zerolog.Logger
}

func (s CLIStrategy) Name() string { return SourceCLI }

func (s CLIStrategy) TryResolve(ctx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	out, err := s.Runner.Run(ctx, s.Path, "service", "status")
	if err != nil {
		// The CLI exits non-zero when the service is stopped but may still
		// print a URL; only give up when there is nothing to parse.
		s.Log.Debug().Err(err).Str("cli", s.Path).Msg("cli status failed")
		if ctx.Err() != nil || len(out) == 0 {
			return "", false
		}
	}
	return extractURL(string(out))
}

func extractURL(out string) (string, bool) {
	m := urlPattern.FindString(out)
	if m == "" {
		return "", false
	}
	return m, true
}

// PortScanStrategy probes well-known ports on a host and picks the first one
// whose status path answers 2xx.
type PortScanStrategy struct {
	Host    string
	Ports   []int
	Timeout time.Duration
	Client  *http.Client
}

func (s PortScanStrategy) Name() string { return SourcePortScan }

func (s PortScanStrategy) TryResolve(ctx context.Context) (string, bool) {
	for _, p := range s.Ports {
		if ctx.Err() != nil {
			return "", false
		}
		base := fmt.Sprintf("http://%s:%d", s.Host, p)
		if err := probe(ctx, s.Client, base, s.Timeout); err == nil {
			return base, true
		}
	}
	return "", false
}

// defaultStrategies builds the CLI + port-scan list from cfg.
func defaultStrategies(cfg Config, c clients) []DiscoveryStrategy {
	var out []DiscoveryStrategy
	if !cfg.DisableCLI {
		out = append(out, CLIStrategy{
			Path:    cfg.CLIPath,
			Timeout: cfg.DiscoveryTimeout,
			Runner:  cfg.Runner,
			Log:     cfg.Logger,
		})
	}
	out = append(out, PortScanStrategy{
		Host:    cfg.ProbeHost,
		Ports:   cfg.ProbePorts,
		Timeout: cfg.ProbeTimeout,
		Client:  c.short,
	})
	return out
}
