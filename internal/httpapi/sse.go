package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// sseWriter frames values as server-sent events, one "data: <json>" line
// per event, flushing after each.
type sseWriter struct {
	w     io.Writer
	flush func()
}

func newSSEWriter(w http.ResponseWriter, log zerolog.Logger, lvl LogLevel) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sw := &sseWriter{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	// Optional logging of stream lines
	if lvl >= LevelDebug {
		sw.w = io.MultiWriter(w, &loggingLineWriter{log: &log})
	}
	sw.flush()
	return sw
}

func (s *sseWriter) event(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(b)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, b...)
	buf = append(buf, '\n', '\n')
	if _, err := s.w.Write(buf); err != nil {
		return err
	}
	s.flush()
	return nil
}
