// Package chat drives one conversation against the agent service. The
// Engine composes staged attachments and active corpora into a send,
// opens the transcript reducer, pumps the decoded event stream into it,
// and enforces the one-open-request guard.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/stream"
	"github.com/parleychat/parley/internal/transcript"
	"github.com/parleychat/parley/internal/upload"
)

// ErrBusy rejects a send while a previous request is still streaming.
// Requests are never queued or interleaved.
var ErrBusy = transcript.ErrBusy

// DefaultContextLength is how many prior exchanges the service folds
// into the model context.
const DefaultContextLength = 10

// Sender is the send side of the API client.
type Sender interface {
	Send(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)
	BaseURL() string
}

// Staging exposes the upload slots attached to the next send.
type Staging interface {
	Snapshot() []upload.Slot
	Paths(kind api.UploadKind) []string
	Release()
}

// CorpusSource names the corpora participating in the next query.
type CorpusSource interface {
	ActiveNames() []string
}

// Config contains the Engine's collaborators.
type Config struct {
	Client        Sender
	Staging       Staging      // nil means no attachments
	Corpora       CorpusSource // nil means no active corpora
	ContextLength int          // zero means DefaultContextLength
	Logger        *slog.Logger // nil means slog.Default()
}

func (cfg Config) validate() error {
	if cfg.Client == nil {
		return errors.New("chat: client is required")
	}
	return nil
}

// Engine owns the current conversation. Safe for concurrent use; only
// one request streams at a time.
type Engine struct {
	client  Sender
	staging Staging
	corpora CorpusSource
	ctxLen  int
	logger  *slog.Logger
	tracer  trace.Tracer

	mu      sync.Mutex
	conv    *transcript.Conversation
	reducer *transcript.Reducer
	pending string
}

// NewEngine creates an engine with no conversation open; the first send
// starts one.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ContextLength <= 0 {
		cfg.ContextLength = DefaultContextLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		client:  cfg.Client,
		staging: cfg.Staging,
		corpora: cfg.Corpora,
		ctxLen:  cfg.ContextLength,
		logger:  cfg.Logger,
		tracer:  otel.Tracer("parley.chat"),
	}, nil
}

// ConversationID returns the current conversation id, empty before the
// first send.
func (e *Engine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conv == nil {
		return ""
	}
	return e.conv.ID
}

// Conversation returns a deep copy of the current conversation, nil
// before the first send. Safe to call while a request streams.
func (e *Engine) Conversation() *transcript.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Clone()
}

// Busy reports whether a request is currently streaming.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reducer != nil && e.reducer.Busy()
}

// Adopt resumes a previously stored conversation; subsequent sends
// append to it. Rejected while a request streams.
func (e *Engine) Adopt(conv *transcript.Conversation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reducer != nil && e.reducer.Busy() {
		return ErrBusy
	}
	e.conv = conv
	e.reducer = transcript.NewReducer(conv, e.client.BaseURL(), e.logger)
	return nil
}

// Reset abandons the current conversation so the next send opens a new
// one. Rejected while a request streams.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reducer != nil && e.reducer.Busy() {
		return ErrBusy
	}
	e.conv = nil
	e.reducer = nil
	return nil
}

// PendingInput returns the draft input not yet sent.
func (e *Engine) PendingInput() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// SetPendingInput replaces the draft input.
func (e *Engine) SetPendingInput(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = s
}

// AppendPendingInput merges text into the draft input, space separated
// when a draft already exists, and returns the result. The voice
// pipeline feeds transcribed speech through here.
func (e *Engine) AppendPendingInput(text string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == "" {
		e.pending = text
	} else {
		e.pending += " " + text
	}
	return e.pending
}

// TakePendingInput returns the draft input and clears it.
func (e *Engine) TakePendingInput() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.pending
	e.pending = ""
	return s
}

// Send submits a query and streams the response into the transcript.
// It blocks until the stream settles and returns the final assistant
// message, including one that settled on a service-reported error
// event. A transport failure settles the open request as an error with
// the partial transcript retained and is returned as a non-nil error;
// it is never retried here.
//
// A send while another request streams fails with ErrBusy and changes
// nothing.
func (e *Engine) Send(ctx context.Context, query string) (*transcript.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("chat: empty query")
	}

	e.mu.Lock()
	if e.reducer != nil && e.reducer.Busy() {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if e.conv == nil {
		e.conv = transcript.NewConversation(uuid.NewString(), query)
		e.reducer = transcript.NewReducer(e.conv, e.client.BaseURL(), e.logger)
	}

	user := &transcript.Message{
		ID:          uuid.NewString(),
		Role:        transcript.RoleUser,
		Text:        query,
		Attachments: e.stagedAttachments(),
		CreatedAt:   time.Now(),
	}
	req := api.ChatRequest{
		MessageID:      user.ID,
		ConversationID: e.conv.ID,
		Query:          query,
		ContextLength:  e.ctxLen,
	}
	if e.staging != nil {
		req.Images = e.staging.Paths(api.UploadImage)
		req.Files = e.staging.Paths(api.UploadFile)
	}
	if e.corpora != nil {
		req.Corpora = e.corpora.ActiveNames()
	}

	if err := e.reducer.Open(user); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := e.reducer.Placeholder(uuid.NewString()); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	e.logger.Debug("sending query",
		"conversation_id", req.ConversationID,
		"message_id", req.MessageID,
		"images", len(req.Images),
		"files", len(req.Files),
		"corpora", len(req.Corpora),
	)

	ctx, span := e.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.Int("request.images", len(req.Images)),
		attribute.Int("request.files", len(req.Files)),
		attribute.Int("request.corpora", len(req.Corpora)),
	))
	defer span.End()

	body, err := e.client.Send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		e.settle(err)
		return nil, fmt.Errorf("sending query: %w", err)
	}
	defer body.Close()

	// The service owns the uploaded files from here on; empty the slots
	// without deleting the remote objects.
	if e.staging != nil {
		e.staging.Release()
	}

	var streamErr error
	for ev, err := range stream.Decode(ctx, body, e.logger) {
		if err != nil {
			streamErr = err
			break
		}
		e.mu.Lock()
		e.reducer.Apply(ev)
		e.mu.Unlock()
	}

	final := e.settle(streamErr)
	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, "stream failed")
		return nil, streamErr
	}
	return final, nil
}

// settle closes the open request and returns a copy of the message the
// stream was filling.
func (e *Engine) settle(err error) *transcript.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reducer.Settle(err)
	return e.conv.LastMessage().Clone()
}

// stagedAttachments converts upload slots into the user message's
// attachment list. Caller holds e.mu.
func (e *Engine) stagedAttachments() []transcript.Attachment {
	if e.staging == nil {
		return nil
	}
	slots := e.staging.Snapshot()
	if len(slots) == 0 {
		return nil
	}
	base := strings.TrimSuffix(e.client.BaseURL(), "/")
	out := make([]transcript.Attachment, 0, len(slots))
	for _, s := range slots {
		kind := transcript.AttachmentImage
		if s.Kind != api.UploadImage {
			kind = transcript.KindForName(s.Name)
		}
		url := s.URL
		if strings.HasPrefix(url, "/") {
			url = base + url
		}
		out = append(out, transcript.Attachment{
			Kind: kind,
			URL:  url,
			Name: s.Name,
			Size: s.Size,
		})
	}
	return out
}
