package manager

// Event names published by the manager.
const (
	EventDownloadStart = "download_start"
	EventDownloadDone  = "download_done"
	EventDownloadError = "download_error"
	EventDeleteStart   = "delete_start"
	EventDeleteDone    = "delete_done"
	EventDeleteFailed  = "delete_failed"
	EventReconnect     = "reconnect"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name, provider, model ID, the operation id shared by
// all events of one operation, and optional fields.
type Event struct {
	Name     string
	Provider string
	ModelID  string
	OpID     string
	Fields   map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
