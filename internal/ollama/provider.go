// Package ollama adapts an Ollama server to llm.Provider. Ollama listens on a
// fixed port and has one response shape per endpoint, so there is no
// discovery, catalog normalization or CLI fallback here.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"localchat/internal/llm"
	"localchat/pkg/types"
)

const (
	ProviderName = "ollama"

	defaultEndpoint       = "http://localhost:11434"
	defaultRequestTimeout = 30 * time.Second
)

// Config holds the tunables for New.
type Config struct {
	Endpoint       string
	RequestTimeout time.Duration
	Transport      http.RoundTripper
	Logger         zerolog.Logger
}

var _ llm.Provider = (*Provider)(nil)

// Provider talks to one Ollama server.
type Provider struct {
	base   string
	short  *http.Client
	stream *http.Client
	log    zerolog.Logger
}

// New constructs a Provider; no I/O happens until the first call.
func New(cfg Config) *Provider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	tr := cfg.Transport
	if tr == nil {
		tr = http.DefaultTransport
	}
	return &Provider{
		base:   strings.TrimRight(cfg.Endpoint, "/"),
		short:  &http.Client{Transport: tr, Timeout: cfg.RequestTimeout},
		stream: &http.Client{Transport: tr, Timeout: 0},
		log:    cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Status(ctx context.Context) types.ProviderStatus {
	st := types.ProviderStatus{Provider: ProviderName, Endpoint: p.base}
	var v struct {
		Version string `json:"version"`
	}
	if err := p.getJSON(ctx, "/api/version", &v); err != nil {
		st.Error = fmt.Sprintf("ollama not reachable at %s: %v", p.base, err)
		return st
	}
	st.Available = true
	return st
}

// Reconnect has nothing cached to drop; it reports fresh status.
func (p *Provider) Reconnect(ctx context.Context) types.ProviderStatus { return p.Status(ctx) }

type tagModel struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Size    int64  `json:"size"`
	Details struct {
		Family            string `json:"family"`
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

type tagsResponse struct {
	Models []tagModel `json:"models"`
}

// ListLocalModels lists pulled models; those in /api/ps are marked loaded.
func (p *Provider) ListLocalModels(ctx context.Context) []types.ModelRecord {
	var tags tagsResponse
	if err := p.getJSON(ctx, "/api/tags", &tags); err != nil {
		p.log.Warn().Err(err).Msg("list models failed")
		return []types.ModelRecord{}
	}
	running := map[string]bool{}
	var ps tagsResponse
	if err := p.getJSON(ctx, "/api/ps", &ps); err == nil {
		for _, m := range ps.Models {
			running[m.Name] = true
		}
	}
	out := make([]types.ModelRecord, 0, len(tags.Models))
	for _, m := range tags.Models {
		st := types.ModelDownloaded
		if running[m.Name] {
			st = types.ModelLoaded
		}
		desc := m.Details.QuantizationLevel
		if desc != "" {
			desc = "quantization " + desc
		}
		rec := types.ModelRecord{
			ID:            m.Name,
			Name:          m.Name,
			Description:   desc,
			SizeBytes:     m.Size,
			Status:        st,
			Provider:      ProviderName,
			Family:        m.Details.Family,
			ParameterSize: strings.ToLower(m.Details.ParameterSize),
		}
		if m.Size > 0 {
			rec.EstRAMMB = int(math.Round(float64(m.Size) / (1 << 20) * 1.2))
		}
		out = append(out, rec)
	}
	return out
}

// ListAvailableModels equals ListLocalModels: Ollama exposes no catalog API.
func (p *Provider) ListAvailableModels(ctx context.Context) []types.ModelRecord {
	return p.ListLocalModels(ctx)
}

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []types.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (p *Provider) StreamChat(ctx context.Context, req types.ChatRequest) <-chan types.ChatDelta {
	out := make(chan types.ChatDelta, 16)
	go func() {
		defer close(out)
		emit := func(d types.ChatDelta) bool { return send(ctx, out, d) }
		opts := map[string]any{}
		if req.Temperature != nil {
			opts["temperature"] = *req.Temperature
		}
		if req.MaxTokens > 0 {
			opts["num_predict"] = req.MaxTokens
		}
		body := chatRequest{Model: req.Model, Messages: req.Messages, Stream: true, Options: opts}
		resp, err := p.post(ctx, "/api/chat", body)
		if err != nil {
			if ctx.Err() == nil {
				emit(types.ChatDelta{Done: true, Error: err.Error()})
			}
			return
		}
		defer resp.Body.Close()
		emitted := false
		err = readLines(resp.Body, func(line []byte) bool {
			var r chatResponse
			if err := json.Unmarshal(line, &r); err != nil {
				p.log.Debug().Err(err).Msg("skipping unparsable chat line")
				return true
			}
			if r.Error != "" {
				emit(types.ChatDelta{Done: true, Error: r.Error})
				return false
			}
			if r.Message.Content != "" {
				emitted = true
			}
			if r.Done {
				emit(types.ChatDelta{Content: r.Message.Content, Done: true})
				return false
			}
			return r.Message.Content == "" || emit(types.ChatDelta{Content: r.Message.Content})
		})
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errStreamOpen) {
			d := types.ChatDelta{Done: true}
			if !emitted {
				d.Content = "[The response stream ended before any content was received.]"
			}
			emit(d)
		} else if err != nil {
			emit(types.ChatDelta{Done: true, Error: "stream interrupted: " + err.Error()})
		}
	}()
	return out
}

type pullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

func (p *Provider) Download(ctx context.Context, modelID string) <-chan types.DownloadProgress {
	out := make(chan types.DownloadProgress, 16)
	go func() {
		defer close(out)
		emit := func(ev types.DownloadProgress) bool { return send(ctx, out, ev) }
		if !emit(types.DownloadProgress{ModelID: modelID, Status: types.DownloadStarting}) {
			return
		}
		resp, err := p.post(ctx, "/api/pull", map[string]any{"model": modelID, "stream": true})
		if err != nil {
			if ctx.Err() == nil {
				emit(types.DownloadProgress{ModelID: modelID, Status: "error: " + err.Error()})
			}
			return
		}
		defer resp.Body.Close()
		err = readLines(resp.Body, func(line []byte) bool {
			var pr pullProgress
			if err := json.Unmarshal(line, &pr); err != nil {
				return true
			}
			switch {
			case pr.Error != "":
				emit(types.DownloadProgress{ModelID: modelID, Status: "error: " + pr.Error})
				return false
			case pr.Status == "success":
				pct := 100.0
				emit(types.DownloadProgress{ModelID: modelID, Status: types.DownloadComplete, Percent: &pct})
				return false
			}
			ev := types.DownloadProgress{ModelID: modelID, Status: pr.Status, BytesDone: pr.Completed, BytesTotal: pr.Total}
			if pr.Total > 0 {
				pct := float64(pr.Completed) * 100 / float64(pr.Total)
				ev.Percent = &pct
			}
			return emit(ev)
		})
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errStreamOpen) {
			emit(types.DownloadProgress{ModelID: modelID, Status: "error: pull stream ended without success"})
		} else if err != nil {
			emit(types.DownloadProgress{ModelID: modelID, Status: "error: " + err.Error()})
		}
	}()
	return out
}

func (p *Provider) Delete(ctx context.Context, modelID string) error {
	b, _ := json.Marshal(map[string]string{"model": modelID})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.base+"/api/delete", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.short.Do(req)
	if err != nil {
		return llm.ErrUnavailable("ollama not reachable: " + err.Error())
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return llm.ErrModelNotFound(modelID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama delete %s: %s: %s", modelID, resp.Status, strings.TrimSpace(string(msg)))
	}
	p.log.Info().Str("model", modelID).Msg("model deleted")
	return nil
}

func (p *Provider) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := p.short.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// post sends body as JSON on the streaming client and checks the status.
func (p *Provider) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama not reachable: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// errStreamOpen reports that the body ended before fn asked to stop.
var errStreamOpen = errors.New("stream ended without a final message")

// readLines calls fn for each non-empty NDJSON line until fn returns false.
func readLines(r io.Reader, fn func([]byte) bool) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if l := bytes.TrimSpace(line); len(l) > 0 {
			if !fn(l) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errStreamOpen
			}
			return err
		}
	}
}

func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
