package a2a

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEWriter writes Server-Sent Events to an http.ResponseWriter.
// Call Init once before writing any events to set the required headers.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSEWriter wrapping the given ResponseWriter.
// The ResponseWriter must implement http.Flusher for streaming to work;
// if it does not, writes will still succeed but may be buffered.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{
		w:       w,
		flusher: f,
	}
}

// Init sets the SSE response headers and flushes them to the client.
// Call this exactly once before the first WriteEvent call.
func (sw *SSEWriter) Init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// WriteEvent serializes the StreamEvent as JSON and writes it in SSE format:
//
//	data: {json}\n\n
//
// After writing, the underlying connection is flushed so the client receives
// the event immediately.
func (sw *SSEWriter) WriteEvent(event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	// Write the SSE data frame: "data: <json>\n\n"
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// MaxEventSize bounds a single SSE line. Status events carry the stage's
// partial results and artifact events carry whole stage outputs, so the
// limit sits well above bufio's 64 KiB default.
const MaxEventSize = 16 << 20

// ReadEvents reads SSE events from body and delivers them on the returned
// channel. The channel is closed when the body is exhausted, a read error
// occurs, or ctx is cancelled. The body is closed when reading finishes, or
// as soon as ctx is cancelled so a blocked read returns.
//
// A line longer than MaxEventSize, or any other read error, is delivered as
// a final StreamEvent with Err set before the channel closes; a stream never
// ends silently on a failed read.
//
// SSE format rules applied:
//   - Lines prefixed with "data: " (or "data:") carry the JSON payload.
//   - Lines starting with ":" are comments and are ignored.
//   - An empty line signals the end of an event.
//   - Multiple "data:" lines within a single event are concatenated (joined
//     with newlines) before JSON unmarshaling.
//   - Malformed JSON produces a StreamEvent with Err set; the reader continues.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer body.Close()
		stop := context.AfterFunc(ctx, func() { body.Close() })
		defer stop()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64<<10), MaxEventSize)

		var data strings.Builder
		flush := func() {
			if data.Len() > 0 {
				sendEvent(ctx, ch, data.String())
				data.Reset()
			}
		}

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			if line == "" {
				flush()
				continue
			}
			payload, ok := dataField(line)
			if !ok {
				continue
			}
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(payload)
		}

		if ctx.Err() != nil {
			return
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("%w (limit %d bytes)", err, MaxEventSize)
			}
			send(ctx, ch, StreamEvent{Err: fmt.Errorf("sse: read event: %w", err)})
			return
		}
		// Data left over without a closing blank line is still an event.
		flush()
	}()
	return ch
}

// dataField returns the payload of a "data:" line. Comments and the event,
// id and retry fields report false.
func dataField(line string) (string, bool) {
	if strings.HasPrefix(line, ":") {
		return "", false
	}
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}

// sendEvent unmarshals raw into a StreamEvent and sends it on ch.
// If unmarshaling fails, a StreamEvent with Err set is sent instead.
func sendEvent(ctx context.Context, ch chan<- StreamEvent, raw string) {
	var ev StreamEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		ev = StreamEvent{Err: fmt.Errorf("sse: unmarshal event: %w", err)}
	}
	send(ctx, ch, ev)
}

func send(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
