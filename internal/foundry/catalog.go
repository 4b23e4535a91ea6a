package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// PromptTemplate carries the prompt formatting fields of a catalog entry.
type PromptTemplate struct {
	System    string `json:"system,omitempty"`
	User      string `json:"user,omitempty"`
	Assistant string `json:"assistant,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

func (p *PromptTemplate) empty() bool {
	return p == nil || (p.System == "" && p.User == "" && p.Assistant == "" && p.Prompt == "")
}

// CatalogEntry is one downloadable model as listed by the service.
type CatalogEntry struct {
	Name           string
	DisplayName    string
	Alias          string
	Publisher      string
	FileSizeMB     float64
	DeviceType     string
	Task           string
	URI            string
	ProviderType   string
	Version        string
	PromptTemplate *PromptTemplate
}

const bytesPerMB = 1 << 20

// SizeBytes converts FileSizeMB to bytes, rounding down.
func (e CatalogEntry) SizeBytes() int64 {
	if e.FileSizeMB <= 0 {
		return 0
	}
	return int64(math.Floor(e.FileSizeMB * bytesPerMB))
}

// EstRAMMB approximates resident memory (weights plus runtime overhead).
// Zero means unknown.
func (e CatalogEntry) EstRAMMB() int {
	return estimateRAMMB(e.FileSizeMB)
}

func estimateRAMMB(sizeMB float64) int {
	if sizeMB <= 0 {
		return 0
	}
	return int(math.Round(sizeMB * 1.2))
}

// VersionedName is Name suffixed with ":<version>" unless it already has one.
func (e CatalogEntry) VersionedName() string {
	if e.Version == "" || strings.Contains(e.Name, ":") {
		return e.Name
	}
	return e.Name + ":" + e.Version
}

// errUnknownCatalogShape is returned for JSON roots no known shape matches.
var errUnknownCatalogShape = errors.New("unrecognized catalog shape")

// parseCatalog detects which of the known response shapes body uses and
// normalizes it:
//
//	(a) [ {camelCase entry}, ... ]
//	(b) { "models": [ {camelCase entry}, ... ] }
//	(c) { "data":   [ {snake_case entry}, ... ] }
//
// Shape detection lives only here so service-version drift stays local.
func parseCatalog(body []byte) ([]CatalogEntry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errUnknownCatalogShape
	}
	switch body[0] {
	case '[':
		return decodeCamel(body)
	case '{':
		var root map[string]json.RawMessage
		if err := json.Unmarshal(body, &root); err != nil {
			return nil, err
		}
		if raw, ok := root["models"]; ok {
			return decodeCamel(raw)
		}
		if raw, ok := root["data"]; ok {
			return decodeSnake(raw)
		}
	}
	return nil, errUnknownCatalogShape
}

// camelEntry is the field naming used by shapes (a) and (b).
type camelEntry struct {
	Name           string          `json:"name"`
	DisplayName    string          `json:"displayName"`
	Alias          string          `json:"alias"`
	Publisher      string          `json:"publisher"`
	FileSizeMB     flexFloat       `json:"fileSizeMb"`
	Task           string          `json:"task"`
	URI            string          `json:"uri"`
	ProviderType   string          `json:"providerType"`
	Version        flexString      `json:"version"`
	PromptTemplate *PromptTemplate `json:"promptTemplate"`
	DeviceType     string          `json:"deviceType"`
	Runtime        struct {
		DeviceType string `json:"deviceType"`
	} `json:"runtime"`
}

// snakeEntry is the field naming used by shape (c).
type snakeEntry struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	DisplayName    string          `json:"display_name"`
	Alias          string          `json:"alias"`
	Publisher      string          `json:"publisher"`
	FileSizeMB     flexFloat       `json:"file_size_mb"`
	Task           string          `json:"task"`
	URI            string          `json:"uri"`
	ProviderType   string          `json:"provider_type"`
	Version        flexString      `json:"version"`
	DeviceType     string          `json:"device_type"`
	PromptTemplate *PromptTemplate `json:"prompt_template"`
}

func decodeCamel(raw []byte) ([]CatalogEntry, error) {
	var in []camelEntry
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, len(in))
	for _, w := range in {
		dev := w.Runtime.DeviceType
		if dev == "" {
			dev = w.DeviceType
		}
		out = append(out, CatalogEntry{
			Name:           w.Name,
			DisplayName:    w.DisplayName,
			Alias:          w.Alias,
			Publisher:      w.Publisher,
			FileSizeMB:     float64(w.FileSizeMB),
			DeviceType:     dev,
			Task:           w.Task,
			URI:            w.URI,
			ProviderType:   w.ProviderType,
			Version:        string(w.Version),
			PromptTemplate: normTemplate(w.PromptTemplate),
		})
	}
	return out, nil
}

func decodeSnake(raw []byte) ([]CatalogEntry, error) {
	var in []snakeEntry
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, len(in))
	for _, w := range in {
		name := w.ID
		if name == "" {
			name = w.Name
		}
		out = append(out, CatalogEntry{
			Name:           name,
			DisplayName:    w.DisplayName,
			Alias:          w.Alias,
			Publisher:      w.Publisher,
			FileSizeMB:     float64(w.FileSizeMB),
			DeviceType:     w.DeviceType,
			Task:           w.Task,
			URI:            w.URI,
			ProviderType:   w.ProviderType,
			Version:        string(w.Version),
			PromptTemplate: normTemplate(w.PromptTemplate),
		})
	}
	return out, nil
}

func normTemplate(p *PromptTemplate) *PromptTemplate {
	if p.empty() {
		return nil
	}
	return p
}

// flexFloat accepts a JSON number, a numeric string, or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unknown formats degrade to "size unknown" instead of failing the fetch.
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexString accepts a JSON string or number (versions appear as both).
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = flexString(b)
	return nil
}

// Catalog fetches and caches the service's model catalog. The cached list is
// an immutable snapshot swapped atomically, so readers never lock.
type Catalog struct {
	loc    *Locator
	client *http.Client
	log    zerolog.Logger

	snap atomic.Pointer[[]CatalogEntry]
}

func newCatalog(loc *Locator, c *http.Client, log zerolog.Logger) *Catalog {
	cat := &Catalog{loc: loc, client: c, log: log}
	loc.OnInvalidate(cat.Invalidate)
	return cat
}

// Invalidate drops the cached snapshot.
func (c *Catalog) Invalidate() { c.snap.Store(nil) }

// Fetch always queries the service. Failures are logged and yield an empty
// list; the previous snapshot is kept in that case.
func (c *Catalog) Fetch(ctx context.Context) []CatalogEntry {
	ep := c.loc.Resolve(ctx)
	url := joinURL(ep.URL, "/foundry/list")
	body, err := getBody(ctx, c.client, url)
	if err != nil {
		c.log.Warn().Err(err).Str("endpoint", ep.URL).Msg("catalog fetch failed")
		return nil
	}
	entries, err := parseCatalog(body)
	if err != nil {
		c.log.Warn().Err(err).Str("endpoint", ep.URL).Str("body", snippet(body)).Msg("catalog response malformed")
		return nil
	}
	c.snap.Store(&entries)
	c.log.Debug().Int("entries", len(entries)).Msg("catalog refreshed")
	return entries
}

// Entries returns the cached snapshot, fetching it on first use.
func (c *Catalog) Entries(ctx context.Context) []CatalogEntry {
	if p := c.snap.Load(); p != nil {
		return *p
	}
	return c.Fetch(ctx)
}

// Lookup finds the entry for id by alias, then name (with or without its
// version suffix), then display name, case-insensitively. The first match in
// that order wins.
func (c *Catalog) Lookup(ctx context.Context, id string) (CatalogEntry, error) {
	entries := c.Entries(ctx)
	if e, ok := lookupEntry(entries, id); ok {
		return e, nil
	}
	return CatalogEntry{}, fmt.Errorf("%q: model not found in catalog", id)
}

func lookupEntry(entries []CatalogEntry, id string) (CatalogEntry, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CatalogEntry{}, false
	}
	for _, e := range entries {
		if e.Alias != "" && strings.EqualFold(e.Alias, id) {
			return e, true
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name, id) || strings.EqualFold(e.VersionedName(), id) {
			return e, true
		}
	}
	for _, e := range entries {
		if e.DisplayName != "" && strings.EqualFold(e.DisplayName, id) {
			return e, true
		}
	}
	return CatalogEntry{}, false
}
