// Package transcript holds the client-side conversation state: the message
// list, its incremental reconstruction from stream events, and the current
// conversation marker shared between CLI invocations.
//
// The [Reducer] is the single writer for a conversation while a request
// streams. All other access goes through snapshot accessors that return
// defensive copies.
package transcript

import (
	"strings"
	"time"
)

// Role identifies a message author.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AttachmentKind classifies an attachment by how it is rendered.
type AttachmentKind string

// Attachment kinds. Audio attachments are files the client can play inline.
const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
	AttachmentAudio AttachmentKind = "audio"
)

// Attachment is an image, file, or audio reference owned by one message,
// resolved to a fetchable URL.
type Attachment struct {
	Kind AttachmentKind
	URL  string
	Name string
	Size int64 // bytes, 0 when unknown
}

// Message is a single transcript entry.
//
// User messages are immutable once appended. An assistant message starts as
// an empty placeholder and is mutated in place by the reducer until its
// stream settles; after that it is never written again.
type Message struct {
	ID          string
	Role        Role
	Text        string
	Attachments []Attachment
	Links       []string // URLs extracted by backend tools, deduplicated
	Trace       []string // reasoning steps, deduplicated by literal text
	Err         string   // message-level error once settled as error
	CreatedAt   time.Time
}

// Clone returns a deep copy.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Attachments = append([]Attachment(nil), m.Attachments...)
	c.Links = append([]string(nil), m.Links...)
	c.Trace = append([]string(nil), m.Trace...)
	return &c
}

// Conversation is an ordered message list with its display metadata.
type Conversation struct {
	ID        string
	Title     string
	Pinned    bool
	Starred   bool
	UpdatedAt time.Time
	Messages  []*Message
}

// titleRuneLimit caps the derived conversation title length.
const titleRuneLimit = 30

// fallbackTitle labels a conversation opened with an empty query.
const fallbackTitle = "新对话"

// NewConversation creates a conversation titled after its opening query.
func NewConversation(id, query string) *Conversation {
	return &Conversation{
		ID:        id,
		Title:     DeriveTitle(query),
		UpdatedAt: time.Now(),
	}
}

// DeriveTitle produces a display title from a query: the first 30 characters,
// or a fixed placeholder when the query is blank.
func DeriveTitle(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return fallbackTitle
	}
	runes := []rune(q)
	if len(runes) > titleRuneLimit {
		return string(runes[:titleRuneLimit])
	}
	return q
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]*Message, len(c.Messages))
	for i, m := range c.Messages {
		cp.Messages[i] = m.Clone()
	}
	return &cp
}

// LastMessage returns the final message, or nil when empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}
