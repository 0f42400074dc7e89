// Package stream decodes the newline-delimited JSON event stream produced by
// the agent backend for one chat request.
//
// The backend writes one JSON record per line. Records arrive as arbitrary
// byte chunks (network reads split lines at any boundary), so the decoder
// buffers the trailing partial line between chunks. A malformed line is
// logged and discarded; it never aborts the stream. One Decoder serves
// exactly one response stream and is not restartable.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
)

// EventType discriminates decoded stream records.
type EventType string

// Event types emitted by the agent backend.
const (
	// EventThinking carries a free-text reasoning step, possibly multi-line.
	EventThinking EventType = "thinking_process"

	// EventToolComplete carries a finished tool execution with its raw and
	// formatted results.
	EventToolComplete EventType = "tool_complete"

	// EventResult carries the final answer text for the request.
	EventResult EventType = "result"

	// EventError carries a backend-reported failure; the stream settles
	// as an error after it.
	EventError EventType = "error"
)

// ToolPayload is the body of a tool_complete record.
type ToolPayload struct {
	// Result is the tool's raw free-text result. Generated artifacts are
	// referenced inside it as output/<path> tokens.
	Result string `json:"result"`

	// FormattedResult is the human-readable summary shown as message text.
	FormattedResult string `json:"formatted_result"`

	// Links are URLs the tool extracted (search results, sources).
	Links []string `json:"links,omitempty"`
}

// Event is one decoded stream record.
//
// MessageID identifies the user message the event answers; the backend omits
// it on tool_complete records, so an empty value is valid there.
type Event struct {
	Type      EventType    `json:"type"`
	MessageID string       `json:"message_id,omitempty"`
	Content   string       `json:"content,omitempty"`
	Result    *ToolPayload `json:"result,omitempty"`
}

// readChunkSize is the read buffer for Decode. Backend lines are short
// (a few hundred bytes); 4KB keeps syscall count low without hoarding.
const readChunkSize = 4096

// Decoder incrementally splits raw response bytes into decoded events.
//
// Not safe for concurrent use: one goroutine owns the stream, mirroring the
// one-decoder-per-response contract.
type Decoder struct {
	logger  *slog.Logger
	buf     []byte
	dropped int
	closed  bool
}

// NewDecoder returns a decoder for a single response stream.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Write appends a chunk and returns every event completed by it, in order.
// The trailing partial line is retained for the next call.
func (d *Decoder) Write(chunk []byte) []Event {
	if d.closed || len(chunk) == 0 {
		return nil
	}

	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Close marks the end of the stream and returns any unterminated trailing
// data. A non-empty remainder is a protocol anomaly (the backend terminates
// every record with a newline) and is logged as a warning, never parsed.
func (d *Decoder) Close() string {
	if d.closed {
		return ""
	}
	d.closed = true

	trailing := strings.TrimSpace(string(d.buf))
	d.buf = nil
	if trailing != "" {
		d.logger.Warn("stream ended with unterminated data",
			"bytes", len(trailing),
			"preview", preview(trailing))
	}
	return trailing
}

// Dropped reports how many malformed lines were discarded.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// decodeLine parses one complete line. Blank lines are skipped silently
// (keep-alive newlines); anything else that fails to parse is counted,
// logged, and dropped.
func (d *Decoder) decodeLine(line []byte) (Event, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		d.dropped++
		d.logger.Warn("discarding malformed stream line",
			"error", err,
			"preview", preview(string(trimmed)))
		return Event{}, false
	}

	switch ev.Type {
	case EventThinking, EventToolComplete, EventResult, EventError:
		return ev, true
	default:
		d.dropped++
		d.logger.Warn("discarding stream record with unknown type",
			"type", string(ev.Type))
		return Event{}, false
	}
}

// Decode reads r to completion, yielding decoded events in arrival order.
//
// The sequence is finite and lazy: records are decoded as bytes arrive, and
// iteration stops at end of stream, on a read error, or when ctx is
// canceled. A read failure or cancellation is yielded once as a non-nil
// error with a zero Event; malformed lines are skipped inside the decoder
// and never surface here.
func Decode(ctx context.Context, r io.Reader, logger *slog.Logger) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		d := NewDecoder(logger)
		defer d.Close()

		chunk := make([]byte, readChunkSize)
		for {
			if err := ctx.Err(); err != nil {
				yield(Event{}, fmt.Errorf("stream canceled: %w", err))
				return
			}

			n, err := r.Read(chunk)
			if n > 0 {
				for _, ev := range d.Write(chunk[:n]) {
					if !yield(ev, nil) {
						return
					}
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Event{}, fmt.Errorf("reading stream: %w", err))
				return
			}
		}
	}
}

// preview truncates a line for log output.
func preview(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
