package manager

import "github.com/rs/zerolog"

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// DefaultProvider is used when a request names no provider. Empty means
	// the first registered provider.
	DefaultProvider string
	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher
	Logger    zerolog.Logger
}
