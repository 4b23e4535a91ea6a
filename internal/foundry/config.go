package foundry

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	ProviderName = "foundry"

	defaultCLIPath          = "foundry"
	defaultEndpoint         = "http://localhost:5273"
	defaultProbeHost        = "localhost"
	defaultDiscoveryTimeout = 15 * time.Second
	defaultProbeTimeout     = 3 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultUnloadTimeout    = 5 * time.Second
	defaultDownloadTimeout  = 4 * time.Hour
	defaultPollInterval     = 2 * time.Second

	// providerTypeTag is sent with every download request.
	providerTypeTag = "AzureFoundryLocal"
)

var defaultProbePorts = []int{5273, 5272, 5274}

// Config encapsulates all tunables for Provider construction.
type Config struct {
	// Endpoint pins the service base URL. When set, discovery never runs.
	Endpoint string
	// CLIPath is the service CLI executable; empty means "foundry" on PATH.
	CLIPath string
	// DisableCLI drops the CLI discovery strategy (REST-only deployments).
	DisableCLI bool
	ProbeHost  string
	ProbePorts []int
	// FallbackEndpoint is returned when every discovery method failed.
	FallbackEndpoint string

	DiscoveryTimeout time.Duration
	ProbeTimeout     time.Duration
	RequestTimeout   time.Duration
	UnloadTimeout    time.Duration
	DownloadTimeout  time.Duration
	PollInterval     time.Duration

	// Strategies replaces the default discovery list when non-nil.
	Strategies []DiscoveryStrategy
	// Runner executes CLI commands; nil uses os/exec.
	Runner CommandRunner
	// Transport is shared by all HTTP clients; nil uses a dedicated transport.
	Transport http.RoundTripper

	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.CLIPath == "" {
		c.CLIPath = defaultCLIPath
	}
	if c.ProbeHost == "" {
		c.ProbeHost = defaultProbeHost
	}
	if len(c.ProbePorts) == 0 {
		c.ProbePorts = append([]int(nil), defaultProbePorts...)
	}
	if c.FallbackEndpoint == "" {
		c.FallbackEndpoint = defaultEndpoint
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = defaultDiscoveryTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.UnloadTimeout <= 0 {
		c.UnloadTimeout = defaultUnloadTimeout
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = defaultDownloadTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Runner == nil {
		c.Runner = execRunner{}
	}
	return c
}
