package types

import "strings"

// ProviderStatus reports whether a provider's backend is reachable.
type ProviderStatus struct {
	// Provider name.
	// example: foundry
	Provider string `json:"provider" example:"foundry"`
	// True when the backend answered its health probe.
	Available bool `json:"available"`
	// Resolved base URL of the backend, when known.
	// example: http://127.0.0.1:5273
	Endpoint string `json:"endpoint,omitempty" example:"http://127.0.0.1:5273"`
	// Error detail when the backend is not available.
	Error string `json:"error,omitempty"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	// example: user
	Role string `json:"role" example:"user"`
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	// Model identifier understood by the provider.
	// example: phi-3.5-mini
	Model string `json:"model" example:"phi-3.5-mini"`
	// Conversation history, oldest first.
	Messages []ChatMessage `json:"messages"`
	// Sampling temperature; omitted means the backend default.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Maximum number of tokens to generate; 0 lets the backend decide.
	// example: 512
	MaxTokens int `json:"maxTokens,omitempty" example:"512"`
}

// ChatDelta is one unit of streamed chat output.
type ChatDelta struct {
	// Incremental text content.
	Content string `json:"content"`
	// Set on the last delta of a stream.
	Done bool `json:"done"`
	// Error message; only set on a terminal delta.
	Error string `json:"error,omitempty"`
}

// DownloadRequest is the body of POST /api/models/download.
type DownloadRequest struct {
	// example: phi-3.5-mini
	ModelID string `json:"modelId" example:"phi-3.5-mini"`
	// Provider name; empty selects the default provider.
	// example: foundry
	Provider string `json:"provider,omitempty" example:"foundry"`
}

// DownloadProgress is one progress event of a model download.
// Terminal events carry Status "complete" or a status prefixed with "error:".
type DownloadProgress struct {
	// example: phi-3.5-mini
	ModelID string `json:"modelId" example:"phi-3.5-mini"`
	// example: downloading (12s)
	Status string `json:"status" example:"downloading (12s)"`
	// Percent complete in [0,100], when known.
	Percent *float64 `json:"percent,omitempty"`
	// Bytes transferred so far, when known.
	BytesDone int64 `json:"bytesDone,omitempty"`
	// Total bytes expected, when known.
	BytesTotal int64 `json:"bytesTotal,omitempty"`
}

// DeleteResponse is returned by DELETE /api/models/{modelId}.
type DeleteResponse struct {
	Success bool `json:"success"`
	// example: deleted phi-3.5-mini
	Message string `json:"message" example:"deleted phi-3.5-mini"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// Download status values with fixed meaning.
const (
	DownloadStarting = "starting"
	DownloadComplete = "complete"
)

// Terminal reports whether p ends a download stream.
func (p DownloadProgress) Terminal() bool {
	return p.Status == DownloadComplete || strings.HasPrefix(p.Status, "error")
}
