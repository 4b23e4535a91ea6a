package manager

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"localchat/pkg/types"
)

// Chat starts a chat stream on the named provider.
func (m *Manager) Chat(ctx context.Context, provider string, req types.ChatRequest) (<-chan types.ChatDelta, error) {
	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		return nil, ErrInvalidRequest("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, ErrInvalidRequest("messages must not be empty")
	}
	p, err := m.Provider(provider)
	if err != nil {
		return nil, err
	}
	m.log.Debug().Str("provider", p.Name()).Str("model", req.Model).Int("messages", len(req.Messages)).Msg("chat")
	return p.StreamChat(ctx, req), nil
}

// Download starts a model download and relays its progress. Start and
// outcome are published as events under one operation id.
func (m *Manager) Download(ctx context.Context, req types.DownloadRequest) (<-chan types.DownloadProgress, error) {
	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		return nil, ErrInvalidRequest("modelId is required")
	}
	p, err := m.Provider(req.Provider)
	if err != nil {
		return nil, err
	}
	ev := Event{Provider: p.Name(), ModelID: modelID, OpID: uuid.NewString()}
	ev.Name = EventDownloadStart
	m.publish(ev)

	in := p.Download(ctx, modelID)
	out := make(chan types.DownloadProgress)
	go func() {
		defer close(out)
		start := time.Now()
		var last types.DownloadProgress
		for pr := range in {
			last = pr
			select {
			case out <- pr:
			case <-ctx.Done():
			}
		}
		ev.Fields = map[string]any{"status": last.Status, "elapsed": time.Since(start).String()}
		switch {
		case last.Status == types.DownloadComplete:
			ev.Name = EventDownloadDone
		case last.Terminal():
			ev.Name = EventDownloadError
		default:
			ev.Name = EventDownloadError
			ev.Fields["canceled"] = true
		}
		m.publish(ev)
		m.log.Info().Str("provider", p.Name()).Str("model", modelID).Str("op", ev.OpID).Str("status", last.Status).Msg(ev.Name)
	}()
	return out, nil
}
