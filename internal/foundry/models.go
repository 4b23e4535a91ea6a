package foundry

import (
	"encoding/json"
	"regexp"
	"strings"

	"localchat/internal/registry"
	"localchat/pkg/types"
)

// localModel is one entry of /openai/models or /openai/loadedmodels. The
// service returns either bare id strings or objects.
type localModel struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          flexFloat `json:"size"`
	Description   string    `json:"description"`
	Family        string    `json:"family"`
	ParameterSize string    `json:"parameterSize"`
}

func parseLocalModels(body []byte) ([]localModel, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		// Some builds wrap the list like the OpenAI API does.
		var wrapped struct {
			Data []json.RawMessage `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil || wrapped.Data == nil {
			return nil, err
		}
		raw = wrapped.Data
	}
	out := make([]localModel, 0, len(raw))
	for _, r := range raw {
		var id string
		if err := json.Unmarshal(r, &id); err == nil {
			if id != "" {
				out = append(out, localModel{ID: id})
			}
			continue
		}
		var m localModel
		if err := json.Unmarshal(r, &m); err != nil {
			continue
		}
		if m.ID == "" {
			m.ID = m.Name
		}
		if m.ID != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

// toRecords converts local models into canonical records. Models whose id is
// in loaded are marked loaded, the rest downloaded. Size is taken as bytes.
func toRecords(provider string, local []localModel, loaded map[string]bool) []types.ModelRecord {
	out := make([]types.ModelRecord, 0, len(local))
	for _, m := range local {
		st := types.ModelDownloaded
		if loaded[strings.ToLower(m.ID)] {
			st = types.ModelLoaded
		}
		out = append(out, types.ModelRecord{
			ID:            m.ID,
			Name:          m.ID,
			Description:   m.Description,
			SizeBytes:     int64(m.Size),
			Status:        st,
			Provider:      provider,
			Family:        m.Family,
			ParameterSize: m.ParameterSize,
		})
	}
	return out
}

// MergeModels enriches local records from the catalog and appends catalog
// entries no local record matched as available. Enrichment fills empty fields
// only; local values always survive.
func MergeModels(provider string, local []types.ModelRecord, catalog []CatalogEntry) []types.ModelRecord {
	out := make([]types.ModelRecord, 0, len(local)+len(catalog))
	matched := make([]bool, len(catalog))
	for _, rec := range local {
		if i := matchCatalog(rec.ID, catalog); i >= 0 {
			matched[i] = true
			rec = enrich(rec, catalog[i])
		}
		out = append(out, rec)
	}
	for i, e := range catalog {
		if matched[i] {
			continue
		}
		out = append(out, project(provider, e))
	}
	return out
}

// matchCatalog returns the index of the catalog entry for a local id, or -1.
// Order: exact id, then version-stripped id against name, then the full id
// against name, both case-insensitive.
func matchCatalog(id string, catalog []CatalogEntry) int {
	for i, e := range catalog {
		if e.Name == id || e.VersionedName() == id {
			return i
		}
	}
	if base := registry.StripVersion(id); base != id {
		for i, e := range catalog {
			if strings.EqualFold(e.Name, base) {
				return i
			}
		}
	}
	for i, e := range catalog {
		if strings.EqualFold(e.Name, id) {
			return i
		}
	}
	return -1
}

func enrich(rec types.ModelRecord, e CatalogEntry) types.ModelRecord {
	if rec.Name == "" || rec.Name == rec.ID {
		if e.DisplayName != "" {
			rec.Name = e.DisplayName
		}
	}
	if rec.Description == "" {
		rec.Description = describe(e)
	}
	if rec.SizeBytes == 0 {
		rec.SizeBytes = e.SizeBytes()
	}
	if rec.EstRAMMB == 0 {
		if rec.SizeBytes > 0 && e.FileSizeMB <= 0 {
			rec.EstRAMMB = estimateRAMMB(float64(rec.SizeBytes) / bytesPerMB)
		} else {
			rec.EstRAMMB = e.EstRAMMB()
		}
	}
	if rec.Family == "" {
		rec.Family = family(e)
	}
	if rec.ParameterSize == "" {
		rec.ParameterSize = parameterSize(e.Name)
	}
	return rec
}

// project converts a catalog-only entry into an available record.
func project(provider string, e CatalogEntry) types.ModelRecord {
	name := e.DisplayName
	if name == "" {
		name = e.Name
	}
	return types.ModelRecord{
		ID:            e.Name,
		Name:          name,
		Description:   describe(e),
		SizeBytes:     e.SizeBytes(),
		EstRAMMB:      e.EstRAMMB(),
		Status:        types.ModelAvailable,
		Provider:      provider,
		Family:        family(e),
		ParameterSize: parameterSize(e.Name),
	}
}

func describe(e CatalogEntry) string {
	var parts []string
	if e.Task != "" {
		parts = append(parts, e.Task)
	}
	if e.Publisher != "" {
		parts = append(parts, "by "+e.Publisher)
	}
	if e.DeviceType != "" {
		parts = append(parts, "("+e.DeviceType+")")
	}
	return strings.Join(parts, " ")
}

func family(e CatalogEntry) string {
	if e.Alias == "" {
		return ""
	}
	// "phi-3.5-mini" -> "phi"
	f, _, _ := strings.Cut(e.Alias, "-")
	return strings.ToLower(f)
}

var paramSizePattern = regexp.MustCompile(`(?i)(?:^|[-_:.])(\d+(?:\.\d+)?[bm])(?:$|[-_:.])`)

// parameterSize extracts a size token such as "0.5b" or "7B" from a model name.
func parameterSize(name string) string {
	m := paramSizePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
