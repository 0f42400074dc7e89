package transcript

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/parleychat/parley/internal/stream"
)

// Phase is the per-request stream lifecycle state.
type Phase int

// Lifecycle phases. A settled reducer accepts the next Open.
const (
	PhaseIdle Phase = iota
	PhaseAwaitingPlaceholder
	PhaseStreaming
	PhaseSettledOK
	PhaseSettledError
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingPlaceholder:
		return "awaiting-placeholder"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettledOK:
		return "settled-ok"
	case PhaseSettledError:
		return "settled-error"
	default:
		return "unknown"
	}
}

// ErrBusy rejects a send while a request is still streaming. Sends are never
// queued: the caller surfaces the busy signal and the user retries after the
// stream settles.
var ErrBusy = errors.New("a request is already streaming for this conversation")

// Reducer folds stream events and user actions into one conversation, in
// arrival order. It is the conversation's only writer while a request is
// open.
//
// At most one assistant placeholder is mutable at any time. Events are
// applied to it only while the reducer is streaming and the placeholder is
// still the last message; anything else is a defensive no-op with a warning
// log, never a transcript corruption.
//
// Not safe for concurrent use; the owning engine serializes access.
type Reducer struct {
	logger  *slog.Logger
	baseURL string

	conv      *Conversation
	phase     Phase
	requestID string // user message id the open stream answers
	openID    string // id of the mutable assistant placeholder
}

// NewReducer wraps a conversation. baseURL resolves output/<path> tokens
// found in tool results.
func NewReducer(conv *Conversation, baseURL string, logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reducer{
		logger:  logger,
		baseURL: baseURL,
		conv:    conv,
	}
}

// Conversation returns the wrapped conversation (live, not a copy).
// Callers needing isolation use Snapshot.
func (r *Reducer) Conversation() *Conversation {
	return r.conv
}

// Snapshot returns a deep copy of the conversation.
func (r *Reducer) Snapshot() *Conversation {
	return r.conv.Clone()
}

// Phase returns the current lifecycle phase.
func (r *Reducer) Phase() Phase {
	return r.phase
}

// Busy reports whether a request is currently open.
func (r *Reducer) Busy() bool {
	return r.phase == PhaseAwaitingPlaceholder || r.phase == PhaseStreaming
}

// Open appends the immutable user message for a new request. It fails with
// ErrBusy while a previous request is still open; concurrent sends are
// rejected, never interleaved.
func (r *Reducer) Open(msg *Message) error {
	if r.Busy() {
		return ErrBusy
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.Role = RoleUser

	r.conv.Messages = append(r.conv.Messages, msg)
	r.conv.UpdatedAt = msg.CreatedAt
	r.requestID = msg.ID
	r.phase = PhaseAwaitingPlaceholder
	return nil
}

// Placeholder appends the empty assistant message the stream will fill and
// begins streaming.
func (r *Reducer) Placeholder(id string) error {
	if r.phase != PhaseAwaitingPlaceholder {
		return ErrBusy
	}
	r.conv.Messages = append(r.conv.Messages, &Message{
		ID:        id,
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
	})
	r.openID = id
	r.phase = PhaseStreaming
	return nil
}

// Apply folds one decoded event into the open placeholder. Events arriving
// outside a streaming request, or after the placeholder stopped being the
// last message, are dropped with a warning.
func (r *Reducer) Apply(ev stream.Event) {
	msg, ok := r.openPlaceholder(ev)
	if !ok {
		return
	}

	switch ev.Type {
	case stream.EventThinking:
		r.applyThinking(msg, ev.Content)
	case stream.EventToolComplete:
		r.applyToolComplete(msg, ev.Result)
	case stream.EventResult:
		// Merge, don't overwrite: a final result replaces the text only,
		// attachments from earlier tool completions stay
		msg.Text = ev.Content
	case stream.EventError:
		msg.Err = ev.Content
		r.settle(PhaseSettledError)
	}
	r.conv.UpdatedAt = time.Now()
}

// Settle marks the end of the stream. A nil error settles ok; a transport
// error settles the message as failed with partial content retained. After
// an error event the reducer is already settled and Settle is a no-op.
func (r *Reducer) Settle(err error) {
	if r.phase != PhaseStreaming && r.phase != PhaseAwaitingPlaceholder {
		return
	}
	if err != nil {
		if msg := r.conv.LastMessage(); msg != nil && msg.ID == r.openID {
			msg.Err = err.Error()
		}
		r.settle(PhaseSettledError)
		return
	}
	r.settle(PhaseSettledOK)
}

func (r *Reducer) settle(p Phase) {
	r.phase = p
	r.openID = ""
	r.requestID = ""
	r.conv.UpdatedAt = time.Now()
}

// openPlaceholder validates the open-placeholder invariant before a merge:
// the reducer must be streaming, the conversation's last message must be the
// placeholder, and the event must belong to the open request.
func (r *Reducer) openPlaceholder(ev stream.Event) (*Message, bool) {
	if r.phase != PhaseStreaming {
		r.logger.Warn("dropping stream event outside streaming phase",
			"type", string(ev.Type),
			"phase", r.phase.String())
		return nil, false
	}

	// tool_complete records carry no message id; match only when present
	if ev.MessageID != "" && ev.MessageID != r.requestID {
		r.logger.Warn("dropping stream event for another request",
			"type", string(ev.Type),
			"event_message_id", ev.MessageID,
			"open_message_id", r.requestID)
		return nil, false
	}

	msg := r.conv.LastMessage()
	if msg == nil || msg.ID != r.openID {
		r.logger.Warn("open placeholder is not the last message, dropping event",
			"type", string(ev.Type))
		return nil, false
	}
	return msg, true
}

// applyThinking appends each non-empty payload line to the reasoning trace,
// skipping literal duplicates so a replayed step stays a single entry.
func (r *Reducer) applyThinking(msg *Message, content string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if containsString(msg.Trace, line) {
			continue
		}
		msg.Trace = append(msg.Trace, line)
	}
}

// applyToolComplete merges a finished tool execution: the formatted summary
// becomes the message text, a generated artifact becomes an attachment, and
// tool links are unioned in.
func (r *Reducer) applyToolComplete(msg *Message, payload *stream.ToolPayload) {
	if payload == nil {
		r.logger.Warn("tool_complete event without payload, dropping")
		return
	}

	msg.Text = payload.FormattedResult

	if att := ResolveOutput(payload.Result, r.baseURL); att != nil {
		if !containsAttachment(msg.Attachments, att.URL) {
			msg.Attachments = append(msg.Attachments, *att)
		}
	}

	for _, link := range payload.Links {
		link = strings.TrimSpace(link)
		if link == "" || containsString(msg.Links, link) {
			continue
		}
		msg.Links = append(msg.Links, link)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAttachment(list []Attachment, url string) bool {
	for _, a := range list {
		if a.URL == url {
			return true
		}
	}
	return false
}
