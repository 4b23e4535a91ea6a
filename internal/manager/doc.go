// Package manager routes front-end requests to the registered inference
// providers. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, provider registry.
//   - config.go: Config and package defaults.
//   - ops.go: status/reconnect/listing fan-out across providers.
//   - streams.go: chat and download streams, with lifecycle events.
//   - errors.go: error types and helpers (IsProviderNotFound, IsInvalidRequest).
//   - events.go, eventpub_memory.go, eventpub_log.go: lifecycle events with
//     in-memory and zerolog sinks.
//
// Provider-specific protocol handling lives in the provider packages
// (internal/foundry, internal/ollama); the manager only sees llm.Provider.
package manager
