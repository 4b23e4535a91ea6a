package manager

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"localchat/pkg/types"
)

// Statuses checks every provider concurrently. Results follow registration
// order.
func (m *Manager) Statuses(ctx context.Context) []types.ProviderStatus {
	ps := m.all()
	out := make([]types.ProviderStatus, len(ps))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range ps {
		i, p := i, p
		g.Go(func() error {
			out[i] = p.Status(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Reconnect drops cached connection state of one provider and re-checks it.
func (m *Manager) Reconnect(ctx context.Context, provider string) (types.ProviderStatus, error) {
	p, err := m.Provider(provider)
	if err != nil {
		return types.ProviderStatus{}, err
	}
	st := p.Reconnect(ctx)
	m.publish(Event{
		Name:     EventReconnect,
		Provider: p.Name(),
		OpID:     uuid.NewString(),
		Fields:   map[string]any{"available": st.Available, "endpoint": st.Endpoint, "error": st.Error},
	})
	return st, nil
}

// ListModels returns local and catalog models of one provider.
func (m *Manager) ListModels(ctx context.Context, provider string) ([]types.ModelRecord, error) {
	p, err := m.Provider(provider)
	if err != nil {
		return nil, err
	}
	return p.ListAvailableModels(ctx), nil
}

// ListLoaded returns the local models of every provider, queried concurrently.
func (m *Manager) ListLoaded(ctx context.Context) []types.ModelRecord {
	ps := m.all()
	parts := make([][]types.ModelRecord, len(ps))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range ps {
		i, p := i, p
		g.Go(func() error {
			parts[i] = p.ListLocalModels(gctx)
			return nil
		})
	}
	_ = g.Wait()
	out := []types.ModelRecord{}
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

// Delete removes a downloaded model from one provider.
func (m *Manager) Delete(ctx context.Context, provider, modelID string) error {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return ErrInvalidRequest("modelId is required")
	}
	p, err := m.Provider(provider)
	if err != nil {
		return err
	}
	ev := Event{Provider: p.Name(), ModelID: modelID, OpID: uuid.NewString()}
	ev.Name = EventDeleteStart
	m.publish(ev)
	if err := p.Delete(ctx, modelID); err != nil {
		ev.Name = EventDeleteFailed
		ev.Fields = map[string]any{"error": err.Error()}
		m.publish(ev)
		if !errors.Is(err, context.Canceled) {
			m.log.Warn().Err(err).Str("provider", p.Name()).Str("model", modelID).Msg("delete failed")
		}
		return err
	}
	ev.Name = EventDeleteDone
	m.publish(ev)
	return nil
}
