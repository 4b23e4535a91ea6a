package manager

import "github.com/rs/zerolog"

// LogPublisher writes every event as one structured log entry.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher { return &LogPublisher{log: l} }

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.Info().Str("event", e.Name).Str("provider", e.Provider)
	if e.ModelID != "" {
		ev = ev.Str("model", e.ModelID)
	}
	if e.OpID != "" {
		ev = ev.Str("op", e.OpID)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("event")
}
