// Package foundry adapts the Foundry Local inference service to llm.Provider.
// It is structured into small files by concern:
//
//   - config.go: Config and package defaults; New applies defaults.
//   - client.go: HTTP clients (short status calls vs. long streams) and JSON helpers.
//   - endpoint.go: Locator and the ordered DiscoveryStrategy list (CLI, port scan).
//   - command.go: CommandRunner used by the CLI strategy.
//   - catalog.go: CatalogEntry, the catalog shape detector and its cache.
//   - models.go: local/loaded model listing and the catalog merge rule.
//   - chat.go: chat completion request and stream translation into ChatDelta.
//   - download.go: streamed model download with progress parsing.
//   - delete.go: unload + cache directory removal.
//   - provider.go: Provider, the facade composing the above.
//   - metrics.go: discovery and download counters.
//
// The service binds a different port on every run, so nothing here assumes a
// fixed base URL unless one is configured explicitly. Configured endpoints are
// trusted and never replaced by discovery.
package foundry
