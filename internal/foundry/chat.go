package foundry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"localchat/pkg/types"
)

// Notices carried by synthetic terminal deltas so the caller can tell an
// empty answer from a normal completion.
const (
	emptyResponseNotice = "[The model returned an empty response.]"
	noContentNotice     = "[The response stream ended before any content was received.]"
)

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Stream      bool                `json:"stream"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// chatFrame is the subset of a streamed completion frame the translator reads.
type chatFrame struct {
	Choices []struct {
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatTranslator turns completion frames into ChatDeltas. emit returns false
// once the consumer is gone; the translator then stops without emitting more.
type chatTranslator struct {
	log      zerolog.Logger
	emit     func(types.ChatDelta) bool
	streamed strings.Builder
	deltas   int
}

// translateChatStream reads body line by line as it arrives and emits deltas.
// Exactly one terminal delta is emitted unless ctx is canceled first.
func translateChatStream(ctx context.Context, body io.Reader, log zerolog.Logger, emit func(types.ChatDelta) bool) {
	t := &chatTranslator{log: log, emit: emit}
	r := bufio.NewReader(body)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			done, stop := t.line(line)
			if done || stop {
				return
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				t.finishAtEOF()
				return
			}
			log.Warn().Err(err).Msg("chat stream read failed")
			t.emit(types.ChatDelta{Done: true, Error: "stream interrupted: " + err.Error()})
			return
		}
	}
}

// line handles one raw line. done reports a terminal delta was sent; stop
// reports the consumer went away.
func (t *chatTranslator) line(raw string) (done, stop bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return false, false
	}
	var payload string
	switch {
	case strings.HasPrefix(line, "data:"):
		payload = strings.TrimSpace(line[len("data:"):])
	case strings.HasPrefix(line, "{"):
		payload = line
	default:
		// event:, id:, comments and anything else carry no content.
		return false, false
	}
	if payload == "[DONE]" {
		d := types.ChatDelta{Done: true}
		if t.deltas == 0 {
			d.Content = emptyResponseNotice
		}
		return true, !t.emit(d)
	}

	b := []byte(payload)
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		t.log.Debug().Err(err).Str("line", snippet(b)).Msg("skipping unparsable stream line")
		return false, false
	}
	if bytes.Contains(b, []byte(`"error"`)) {
		if msg, ok := findError(generic); ok {
			return true, !t.emit(types.ChatDelta{Done: true, Error: msg})
		}
	}

	var f chatFrame
	if err := json.Unmarshal(b, &f); err != nil {
		t.log.Debug().Err(err).Str("line", snippet(b)).Msg("skipping unexpected frame")
		return false, false
	}
	for _, c := range f.Choices {
		// A delta wins over a message in the same choice; message is only
		// terminal in frames that stream nothing.
		if c.Delta != nil {
			if c.Delta.Content != "" {
				t.deltas++
				t.streamed.WriteString(c.Delta.Content)
				if !t.emit(types.ChatDelta{Content: c.Delta.Content}) {
					return false, true
				}
			}
			continue
		}
		if c.Message != nil {
			return true, !t.emit(t.final(c.Message.Content))
		}
	}
	return false, false
}

// final builds the terminal delta for a full-message frame. Text already
// streamed is not repeated.
func (t *chatTranslator) final(content string) types.ChatDelta {
	d := types.ChatDelta{Done: true}
	switch {
	case t.deltas == 0 && content == "":
		d.Content = emptyResponseNotice
	case t.deltas == 0:
		d.Content = content
	default:
		if rest, ok := strings.CutPrefix(content, t.streamed.String()); ok {
			d.Content = rest
		}
	}
	return d
}

func (t *chatTranslator) finishAtEOF() {
	d := types.ChatDelta{Done: true}
	if t.deltas == 0 {
		d.Content = noContentNotice
		t.log.Warn().Msg("chat stream ended without content")
	}
	t.emit(d)
}

// findError looks for an "error" key at any depth. Its value may be a string
// or an object with a message.
func findError(v any) (string, bool) {
	switch x := v.(type) {
	case map[string]any:
		if e, ok := x["error"]; ok && e != nil {
			switch ev := e.(type) {
			case string:
				if ev != "" {
					return ev, true
				}
			case map[string]any:
				if m, ok := ev["message"].(string); ok && m != "" {
					return m, true
				}
				b, _ := json.Marshal(ev)
				return string(b), true
			default:
				return fmt.Sprint(ev), true
			}
		}
		for _, child := range x {
			if msg, ok := findError(child); ok {
				return msg, true
			}
		}
	case []any:
		for _, child := range x {
			if msg, ok := findError(child); ok {
				return msg, true
			}
		}
	}
	return "", false
}

// StreamChat streams a completion for req. The channel is closed after the
// terminal delta, or without one when ctx is canceled.
func (p *Provider) StreamChat(ctx context.Context, req types.ChatRequest) <-chan types.ChatDelta {
	out := make(chan types.ChatDelta, 16)
	emit := func(d types.ChatDelta) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(out)
		p.streamChat(ctx, req, emit)
	}()
	return out
}

func (p *Provider) streamChat(ctx context.Context, req types.ChatRequest, emit func(types.ChatDelta) bool) {
	log := p.log.With().Str("model", req.Model).Logger()
	if strings.TrimSpace(req.Model) == "" {
		emit(types.ChatDelta{Done: true, Error: "model is required"})
		return
	}
	ep := p.loc.Resolve(ctx)
	p.triggerLoad(ctx, ep.URL, req.Model)

	body, _ := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(ep.URL, "/v1/chat/completions"), bytes.NewReader(body))
	if err != nil {
		emit(types.ChatDelta{Done: true, Error: err.Error()})
		return
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "text/event-stream")
	resp, err := p.http.stream.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("endpoint", ep.URL).Msg("chat request failed")
		emit(types.ChatDelta{Done: true, Error: "inference service unreachable: " + err.Error()})
		return
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn().Int("status", resp.StatusCode).Str("body", snippet(b)).Msg("chat request rejected")
		emit(types.ChatDelta{Done: true, Error: fmt.Sprintf("inference service returned %s: %s", resp.Status, snippet(b))})
		return
	}
	translateChatStream(ctx, resp.Body, log, emit)
}

// triggerLoad asks the service to load model without waiting for the result;
// the model may already be resident.
func (p *Provider) triggerLoad(ctx context.Context, base, model string) {
	lctx := context.WithoutCancel(ctx)
	go func() {
		u := joinURL(base, "/openai/load/"+url.PathEscape(model))
		if _, err := getBody(lctx, p.http.short, u); err != nil {
			p.log.Debug().Err(err).Str("model", model).Msg("load trigger failed")
		}
	}()
}
