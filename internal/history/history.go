// Package history caches the conversation list served by the agent
// service. Fetches are debounced behind a quiet period, metadata
// patches apply optimistically and roll back on remote failure, and
// deletion is remote-first. The cache also rebuilds a full transcript
// from the stored query/response pairs of one conversation.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/transcript"
)

// DefaultDebounce is the quiet period before a scheduled fetch fires.
const DefaultDebounce = 300 * time.Millisecond

// ErrFetchInFlight reports a fetch dropped because another one was
// already on the wire. Dropped, not queued: the in-flight response
// would race a queued one.
var ErrFetchInFlight = errors.New("a history fetch is already in flight")

// Service is the remote side of the cache. *api.Client implements it.
type Service interface {
	ListConversations(ctx context.Context) ([]api.HistoryRecord, error)
	GetConversation(ctx context.Context, id string) (*api.HistoryRecord, error)
	PatchConversation(ctx context.Context, id string, fields map[string]any) error
	DeleteConversation(ctx context.Context, id string) error
}

// Exchange is one stored query/response pair.
type Exchange struct {
	Query     string
	Response  string
	Timestamp time.Time
}

// Record is a cached conversation summary.
type Record struct {
	ID        string
	Title     string
	Timestamp time.Time
	Pinned    bool
	Starred   bool
	Exchanges []Exchange
}

func (r Record) clone() Record {
	r.Exchanges = append([]Exchange(nil), r.Exchanges...)
	return r
}

// Config configures a Cache.
type Config struct {
	Service  Service
	BaseURL  string        // resolves artifact paths inside stored responses
	Debounce time.Duration // zero means DefaultDebounce
	Logger   *slog.Logger  // nil means slog.Default()
}

// Cache holds the conversation list between fetches. Safe for
// concurrent use.
type Cache struct {
	service  Service
	baseURL  string
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	records  []Record
	filter   string
	gen      uint64 // bumps on every successful refresh
	timer    *time.Timer
	inflight bool

	updates chan struct{}
}

// NewCache creates a history cache.
func NewCache(cfg Config) (*Cache, error) {
	if cfg.Service == nil {
		return nil, errors.New("history: service is required")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		service:  cfg.Service,
		baseURL:  cfg.BaseURL,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		updates:  make(chan struct{}, 1),
	}, nil
}

// Updates signals after every successful refresh. Notifications
// coalesce; receivers re-read the cache rather than counting signals.
func (c *Cache) Updates() <-chan struct{} {
	return c.updates
}

// Fetch schedules a refresh with the given filter after the quiet
// period. A call during the quiet period replaces the pending filter
// and restarts the timer; the filter narrows the Conversations view
// immediately.
func (c *Cache) Fetch(ctx context.Context, filter string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		err := c.Refresh(ctx, filter)
		switch {
		case err == nil:
		case errors.Is(err, ErrFetchInFlight):
			c.logger.Debug("history fetch dropped", "filter", filter)
		default:
			c.logger.Warn("history fetch failed", "error", err)
		}
	})
}

// Refresh fetches the conversation list immediately. A call while
// another fetch is on the wire returns ErrFetchInFlight and does
// nothing.
func (c *Cache) Refresh(ctx context.Context, filter string) error {
	c.mu.Lock()
	if c.inflight {
		c.mu.Unlock()
		return ErrFetchInFlight
	}
	c.inflight = true
	c.filter = filter
	c.mu.Unlock()

	recs, err := c.service.ListConversations(ctx)

	c.mu.Lock()
	c.inflight = false
	if err == nil {
		c.records = toRecords(recs)
		c.gen++
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}
	c.notify()
	return nil
}

func (c *Cache) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Close cancels a pending scheduled fetch.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Conversations returns the cached records matching the active filter,
// pinned conversations first, newest first within each group.
func (c *Cache) Conversations() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		if matches(r, c.filter) {
			out = append(out, r.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Get returns one cached record by id, unaffected by the filter.
func (c *Cache) Get(id string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return Record{}, false
}

// matches reports whether the record survives a title/query substring
// filter. Matching is case-insensitive.
func matches(r Record, filter string) bool {
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	if strings.Contains(strings.ToLower(r.Title), needle) {
		return true
	}
	for _, ex := range r.Exchanges {
		if strings.Contains(strings.ToLower(ex.Query), needle) {
			return true
		}
	}
	return false
}

// PatchMetadata updates conversation metadata. The local record changes
// immediately; a remote failure rolls the record back unless a refresh
// has replaced the cache in the meantime, in which case the fetched
// state is already authoritative.
func (c *Cache) PatchMetadata(ctx context.Context, id string, fields map[string]any) error {
	c.mu.Lock()
	var prev *Record
	gen := c.gen
	for i := range c.records {
		if c.records[i].ID != id {
			continue
		}
		snapshot := c.records[i]
		prev = &snapshot
		applyFields(&c.records[i], fields)
		break
	}
	c.mu.Unlock()

	if err := c.service.PatchConversation(ctx, id, fields); err != nil {
		if prev != nil {
			c.mu.Lock()
			if c.gen == gen {
				for i := range c.records {
					if c.records[i].ID == id {
						c.records[i] = *prev
						break
					}
				}
			}
			c.mu.Unlock()
		}
		return fmt.Errorf("patching conversation %s: %w", id, err)
	}
	return nil
}

// applyFields folds the recognized metadata keys into a record. Unknown
// keys travel to the service untouched but have no local effect.
func applyFields(r *Record, fields map[string]any) {
	for key, val := range fields {
		switch key {
		case "title":
			if s, ok := val.(string); ok {
				r.Title = s
			}
		case "pinned":
			if b, ok := val.(bool); ok {
				r.Pinned = b
			}
		case "starred":
			if b, ok := val.(bool); ok {
				r.Starred = b
			}
		}
	}
}

// Delete removes a conversation remotely, then locally. A remote
// failure leaves the cache untouched.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.service.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	c.mu.Lock()
	for i := range c.records {
		if c.records[i].ID == id {
			c.records = append(c.records[:i], c.records[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// Load fetches one conversation and rebuilds its transcript: every
// stored query/response pair becomes a user message and an assistant
// message, with artifact paths in the response resolved to attachments.
// An unknown id yields an empty conversation with the service's
// placeholder title.
func (c *Cache) Load(ctx context.Context, id string) (*transcript.Conversation, error) {
	rec, err := c.service.GetConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}

	conv := &transcript.Conversation{
		ID:        id,
		Title:     rec.Title,
		Pinned:    rec.Pinned,
		Starred:   rec.Starred,
		UpdatedAt: ParseTimestamp(rec.Timestamp),
	}
	for _, m := range rec.Messages {
		ts := ParseTimestamp(m.Timestamp)
		user := &transcript.Message{
			ID:        uuid.NewString(),
			Role:      transcript.RoleUser,
			Text:      m.Query,
			CreatedAt: ts,
		}
		asst := &transcript.Message{
			ID:        uuid.NewString(),
			Role:      transcript.RoleAssistant,
			Text:      m.Response,
			CreatedAt: ts,
		}
		if att := transcript.ResolveOutput(m.Response, c.baseURL); att != nil {
			asst.Attachments = append(asst.Attachments, *att)
		}
		conv.Messages = append(conv.Messages, user, asst)
	}
	if conv.Title == "" && len(rec.Messages) > 0 {
		conv.Title = transcript.DeriveTitle(rec.Messages[0].Query)
	}
	return conv, nil
}

// timestampLayouts are tried in order. The service writes naive ISO
// 8601 without an offset; offset-carrying and space-separated variants
// are accepted for robustness. Fractional seconds parse under every
// layout.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a service timestamp. Naive stamps are
// interpreted in local time; unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// toRecords converts wire records into cached ones.
func toRecords(recs []api.HistoryRecord) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		rec := Record{
			ID:        r.ConversationID,
			Title:     r.Title,
			Timestamp: ParseTimestamp(r.Timestamp),
			Pinned:    r.Pinned,
			Starred:   r.Starred,
		}
		for _, m := range r.Messages {
			rec.Exchanges = append(rec.Exchanges, Exchange{
				Query:     m.Query,
				Response:  m.Response,
				Timestamp: ParseTimestamp(m.Timestamp),
			})
		}
		out = append(out, rec)
	}
	return out
}
