package api

import (
	"context"
	"net/http"
	"net/url"
)

// HistoryMessage is one stored exchange: the user's query and the
// assistant's final response.
type HistoryMessage struct {
	Query     string `json:"query"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// HistoryRecord is one conversation as stored by the service. Timestamps
// are kept as strings on the wire; the service writes naive ISO 8601
// without an offset, which does not round-trip through time.Time.
type HistoryRecord struct {
	ConversationID string           `json:"conversation_id"`
	Title          string           `json:"title"`
	Timestamp      string           `json:"timestamp"`
	Pinned         bool             `json:"pinned"`
	Starred        bool             `json:"starred"`
	Messages       []HistoryMessage `json:"messages"`
}

// ListConversations fetches every stored conversation, newest last.
func (c *Client) ListConversations(ctx context.Context) ([]HistoryRecord, error) {
	var records []HistoryRecord
	if err := c.getJSON(ctx, "list history", "/api/chat/history", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetConversation fetches one conversation by id. An unknown id is not an
// error; the service answers with an empty record.
func (c *Client) GetConversation(ctx context.Context, id string) (*HistoryRecord, error) {
	var record HistoryRecord
	if err := c.getJSON(ctx, "get history", "/api/chat/history/"+url.PathEscape(id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PatchConversation updates metadata fields on a stored conversation.
// Recognized keys are "title", "pinned" and "starred"; the service
// ignores anything else.
func (c *Client) PatchConversation(ctx context.Context, id string, fields map[string]any) error {
	return c.patchJSON(ctx, "patch history", "/api/chat/history/"+url.PathEscape(id), fields)
}

// DeleteConversation removes one conversation and its server-side
// artifacts.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete history", http.MethodDelete, "/api/chat/history/"+url.PathEscape(id), nil, "", nil)
}
