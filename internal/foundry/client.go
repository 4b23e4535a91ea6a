package foundry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// clients groups the HTTP clients used against the service. Status and catalog
// calls use short timeouts; chat streams carry their deadline in the context;
// downloads may legitimately run for hours.
type clients struct {
	short    *http.Client
	stream   *http.Client
	download *http.Client
}

func newClients(cfg Config) clients {
	tr := cfg.Transport
	if tr == nil {
		tr = &http.Transport{
			Proxy: nil, // localhost only; never route through an env proxy
			DialContext: (&net.Dialer{
				Timeout:   cfg.ProbeTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}
	return clients{
		short:    &http.Client{Transport: tr, Timeout: cfg.RequestTimeout},
		stream:   &http.Client{Transport: tr, Timeout: 0},
		download: &http.Client{Transport: tr, Timeout: cfg.DownloadTimeout},
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

// getBody issues a GET and returns the body of a 2xx response.
func getBody(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("GET %s: %s: %s", url, resp.Status, snippet(b))
	}
	return b, nil
}

// probe reports whether GET /openai/status answers 2xx within timeout.
func probe(ctx context.Context, c *http.Client, base string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := getBody(ctx, c, joinURL(base, "/openai/status"))
	return err
}

// serviceStatus is the subset of GET /openai/status the adapter reads.
// The service has used both camelCase and PascalCase over time.
type serviceStatus struct {
	ModelDirPath   string `json:"modelDirPath"`
	ModelDirPathPC string `json:"ModelDirPath"`
}

func (s serviceStatus) modelDir() string {
	if s.ModelDirPath != "" {
		return s.ModelDirPath
	}
	return s.ModelDirPathPC
}

func parseServiceStatus(b []byte) (serviceStatus, error) {
	var s serviceStatus
	if err := json.Unmarshal(b, &s); err != nil {
		return s, err
	}
	return s, nil
}

// snippet trims a response body for error messages and logs.
func snippet(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
