package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"localchat/pkg/types"
)

const (
	downloadChunkSize  = 32 << 10
	downloadQueueDepth = 16
	// signalWindow bounds how much recent stream text is kept for finding
	// the completion JSON, which may straddle chunk boundaries.
	signalWindow = 4 << 10
	maxCarry     = 256
)

var (
	totalPattern        = regexp.MustCompile(`Total\s+(\d+(?:\.\d+)?)%`)
	successPattern      = regexp.MustCompile(`"[sS]uccess"\s*:\s*(true|false)`)
	errorMessagePattern = regexp.MustCompile(`"[eE]rrorMessage"\s*:\s*("(?:[^"\\]|\\.)*")`)
)

type downloadRequest struct {
	Model            downloadModel `json:"Model"`
	Token            string        `json:"token"`
	IgnorePipeReport bool          `json:"IgnorePipeReport"`
}

type downloadModel struct {
	Name           string          `json:"Name"`
	URI            string          `json:"Uri"`
	Publisher      string          `json:"Publisher"`
	ProviderType   string          `json:"ProviderType"`
	PromptTemplate *PromptTemplate `json:"PromptTemplate,omitempty"`
}

func newDownloadRequest(e CatalogEntry) downloadRequest {
	return downloadRequest{
		Model: downloadModel{
			Name:           e.VersionedName(),
			URI:            e.URI,
			Publisher:      e.Publisher,
			ProviderType:   providerTypeTag,
			PromptTemplate: e.PromptTemplate,
		},
		IgnorePipeReport: true,
	}
}

// chunk is one read from the download response body.
type chunk struct {
	data []byte
	err  error
}

// progressTracker scans download output for percentages and the completion
// signal.
type progressTracker struct {
	carry  string
	window string

	percent     float64
	havePercent bool
	// failed is set once "success": false was seen but its message has not
	// arrived yet.
	failed bool
}

// outcome is the terminal result found in the stream, if any.
type outcome struct {
	done bool
	ok   bool
	msg  string
}

// feed consumes one chunk and reports whether it carried a new percentage
// and whether the stream signalled completion.
func (t *progressTracker) feed(b []byte) (newPercent bool, out outcome) {
	text := t.carry + string(b)

	cut := strings.LastIndexAny(text, "\r\n") + 1
	if ms := totalPattern.FindAllStringSubmatchIndex(text, -1); len(ms) > 0 {
		last := ms[len(ms)-1]
		if v, err := strconv.ParseFloat(text[last[2]:last[3]], 64); err == nil {
			t.percent, t.havePercent, newPercent = v, true, true
		}
		if last[1] > cut {
			cut = last[1]
		}
	}
	t.carry = text[cut:]
	if len(t.carry) > maxCarry {
		t.carry = t.carry[len(t.carry)-maxCarry:]
	}

	t.window += string(b)
	if len(t.window) > signalWindow {
		t.window = t.window[len(t.window)-signalWindow:]
	}
	if !t.failed {
		m := successPattern.FindStringSubmatch(t.window)
		if m == nil {
			return newPercent, outcome{}
		}
		if m[1] == "true" {
			return newPercent, outcome{done: true, ok: true}
		}
		t.failed = true
	}
	if m := errorMessagePattern.FindStringSubmatch(t.window); m != nil {
		msg, err := strconv.Unquote(m[1])
		if err != nil {
			msg = strings.Trim(m[1], `"`)
		}
		return newPercent, outcome{done: true, msg: msg}
	}
	return newPercent, outcome{}
}

// finish infers the outcome of a stream that ended without a signal.
func (t *progressTracker) finish() outcome {
	switch {
	case t.failed:
		return outcome{done: true, msg: "unknown error"}
	case t.havePercent && t.percent >= 99:
		return outcome{done: true, ok: true}
	default:
		return outcome{done: true, msg: fmt.Sprintf("download stream ended at %.1f%%", t.percent)}
	}
}

// Download starts a model download and streams its progress. The channel
// is closed after the terminal event, or without one when ctx is canceled.
func (p *Provider) Download(ctx context.Context, modelID string) <-chan types.DownloadProgress {
	out := make(chan types.DownloadProgress, downloadQueueDepth)
	emit := func(ev types.DownloadProgress) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(out)
		result := p.download(ctx, strings.TrimSpace(modelID), emit)
		downloadsTotal.WithLabelValues(result).Inc()
	}()
	return out
}

// download runs the workflow and returns the metrics label of its outcome.
func (p *Provider) download(ctx context.Context, modelID string, emit func(types.DownloadProgress) bool) string {
	log := p.log.With().Str("model", modelID).Logger()
	start := time.Now()
	fail := func(msg string) string {
		emit(types.DownloadProgress{ModelID: modelID, Status: "error: " + msg})
		return "failed"
	}

	if !emit(types.DownloadProgress{ModelID: modelID, Status: types.DownloadStarting}) {
		return "canceled"
	}
	entry, err := p.catalog.Lookup(ctx, modelID)
	if err != nil {
		if ctx.Err() != nil {
			return "canceled"
		}
		log.Warn().Err(err).Msg("download lookup failed")
		emit(types.DownloadProgress{ModelID: modelID, Status: "error: model not found in catalog"})
		return "not_found"
	}
	total := entry.SizeBytes()

	ep := p.loc.Resolve(ctx)
	body, _ := json.Marshal(newDownloadRequest(entry))
	// rctx ends the request and the reader goroutine once download returns,
	// even when ctx outlives it.
	rctx, rcancel := context.WithCancel(ctx)
	defer rcancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, joinURL(ep.URL, "/openai/download"), bytes.NewReader(body))
	if err != nil {
		return fail(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	log.Info().Str("endpoint", ep.URL).Str("name", entry.VersionedName()).Msg("download started")
	resp, err := p.http.download.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "canceled"
		}
		log.Warn().Err(err).Msg("download request failed")
		return fail("inference service unreachable: " + err.Error())
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn().Int("status", resp.StatusCode).Str("body", snippet(b)).Msg("download rejected")
		return fail(fmt.Sprintf("inference service returned %s: %s", resp.Status, snippet(b)))
	}

	chunks := make(chan chunk, downloadQueueDepth)
	go readChunks(rctx, resp.Body, chunks)

	var tr progressTracker
	progress := func(status string) types.DownloadProgress {
		ev := types.DownloadProgress{ModelID: modelID, Status: status, BytesTotal: total}
		if tr.havePercent {
			pct := tr.percent
			ev.Percent = &pct
			if total > 0 {
				ev.BytesDone = int64(float64(total) * pct / 100)
			}
		}
		return ev
	}
	terminal := func(o outcome) string {
		if o.ok {
			pct := 100.0
			log.Info().Dur("elapsed", time.Since(start)).Msg("download complete")
			emit(types.DownloadProgress{ModelID: modelID, Status: types.DownloadComplete, Percent: &pct, BytesDone: total, BytesTotal: total})
			return "complete"
		}
		log.Warn().Str("reason", o.msg).Msg("download failed")
		emit(progress("error: " + o.msg))
		return "failed"
	}
	downloading := func() string {
		return fmt.Sprintf("downloading (%s)", time.Since(start).Round(time.Second))
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	emitted := false
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("download canceled")
			return "canceled"
		case c, ok := <-chunks:
			if !ok {
				if ctx.Err() != nil {
					return "canceled"
				}
				return terminal(tr.finish())
			}
			if c.err != nil {
				if ctx.Err() != nil {
					return "canceled"
				}
				log.Warn().Err(c.err).Msg("download stream read failed")
				return terminal(outcome{done: true, msg: fmt.Sprintf("download stream failed at %.1f%%: %v", tr.percent, c.err)})
			}
			newPct, o := tr.feed(c.data)
			if o.done {
				return terminal(o)
			}
			if newPct {
				if !emit(progress(downloading())) {
					return "canceled"
				}
				emitted = true
			}
		case <-ticker.C:
			if !emitted {
				if !emit(progress(downloading())) {
					return "canceled"
				}
			}
			emitted = false
		}
	}
}

// readChunks copies body into out until EOF, a read error, or ctx is done.
// out is closed on return.
func readChunks(ctx context.Context, body io.Reader, out chan<- chunk) {
	defer close(out)
	buf := make([]byte, downloadChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			c := chunk{data: append([]byte(nil), buf[:n]...)}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case out <- chunk{err: err}:
				case <-ctx.Done():
				}
			}
			return
		}
	}
}
