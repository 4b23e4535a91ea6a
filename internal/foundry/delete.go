package foundry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"localchat/internal/common/fsutil"
	"localchat/internal/llm"
	"localchat/internal/registry"
)

// Delete unloads modelID (best effort) and removes its cache directory.
func (p *Provider) Delete(ctx context.Context, modelID string) error {
	modelID = strings.TrimSpace(modelID)
	log := p.log.With().Str("model", modelID).Logger()
	if modelID == "" {
		return llm.ErrModelNotFound(modelID)
	}
	ep := p.loc.Resolve(ctx)
	p.unload(ctx, ep.URL, modelID)

	root, err := p.cacheRoot(ctx, ep.URL)
	if err != nil {
		log.Warn().Err(err).Msg("delete: cache root unavailable")
		return err
	}
	entry, kind, err := registry.FindModelDir(root, modelID)
	switch {
	case errors.Is(err, registry.ErrNoMatch):
		log.Info().Str("root", root).Msg("delete: no matching cache directory")
		return llm.ErrModelNotFound(modelID)
	case errors.Is(err, fs.ErrPermission):
		log.Warn().Err(err).Str("root", root).Msg("delete: cache not enumerable")
		return llm.ErrPermissionDenied(root, err)
	case err != nil:
		return fmt.Errorf("scan model cache %s: %w", root, err)
	}
	if err := os.RemoveAll(entry.Path); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return llm.ErrPermissionDenied(entry.Path, err)
		}
		return fmt.Errorf("remove %s: %w", entry.Path, err)
	}
	log.Info().Str("path", entry.Path).Str("match", string(kind)).Msg("model deleted")
	return nil
}

// unload asks the service to drop modelID from memory. Errors are ignored:
// the model is often not loaded.
func (p *Provider) unload(ctx context.Context, base, modelID string) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.UnloadTimeout)
	defer cancel()
	u := joinURL(base, "/openai/unload/"+url.PathEscape(modelID)+"?force=true")
	if _, err := getBody(ctx, p.http.short, u); err != nil {
		p.log.Debug().Err(err).Str("model", modelID).Msg("unload failed")
	}
}

// cacheRoot reads the model cache directory from the service status.
func (p *Provider) cacheRoot(ctx context.Context, base string) (string, error) {
	b, err := getBody(ctx, p.http.short, joinURL(base, "/openai/status"))
	if err != nil {
		return "", llm.ErrUnavailable("cannot read service status: " + err.Error())
	}
	st, err := parseServiceStatus(b)
	if err != nil {
		return "", llm.ErrUnavailable("malformed service status: " + err.Error())
	}
	root, err := fsutil.ExpandHome(st.modelDir())
	if err != nil || root == "" {
		return "", llm.ErrUnavailable("service did not report a model cache directory")
	}
	ok, err := fsutil.DirExists(root)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", llm.ErrPermissionDenied(root, err)
		}
		return "", llm.ErrUnavailable(fmt.Sprintf("model cache %s: %v", root, err))
	}
	if !ok {
		return "", llm.ErrUnavailable("model cache directory " + root + " does not exist")
	}
	return root, nil
}
