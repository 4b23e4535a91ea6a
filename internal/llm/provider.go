// Package llm defines the uniform surface every inference backend adapter
// exposes to the rest of the application.
package llm

import (
	"context"

	"localchat/pkg/types"
)

// Provider is the facade over one inference backend.
//
// Implementations never panic across this boundary and degrade instead of
// failing: listings return what could be fetched, streams end with a terminal
// delta/event that carries the error. Streams stop silently when ctx is
// canceled; the returned channels are always closed.
type Provider interface {
	Name() string
	Status(ctx context.Context) types.ProviderStatus
	// ListAvailableModels returns local models first, then catalog-only ones.
	ListAvailableModels(ctx context.Context) []types.ModelRecord
	// ListLocalModels returns downloaded and loaded models only.
	ListLocalModels(ctx context.Context) []types.ModelRecord
	StreamChat(ctx context.Context, req types.ChatRequest) <-chan types.ChatDelta
	Download(ctx context.Context, modelID string) <-chan types.DownloadProgress
	// Delete removes a downloaded model. See IsModelNotFound and
	// IsPermissionDenied for the distinct failure modes.
	Delete(ctx context.Context, modelID string) error
	// Reconnect drops cached endpoint/catalog state and re-resolves.
	Reconnect(ctx context.Context) types.ProviderStatus
}
