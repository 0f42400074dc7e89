package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ChatRequest carries one user turn to the agent service.
type ChatRequest struct {
	MessageID      string
	ConversationID string
	Query          string
	ContextLength  int      // how many prior exchanges the agent may read
	Images         []string // server-side paths of staged image uploads
	Files          []string // server-side paths of staged file uploads
	Corpora        []string // active knowledge base names
}

// Send posts the turn and returns the raw NDJSON event stream. The caller
// owns the ReadCloser and must close it.
//
// Send is never retried and has no client-side deadline: the body stays
// open while the agent runs tools, and replaying the request would
// duplicate the turn server-side.
func (c *Client) Send(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	form := url.Values{}
	form.Set("message_id", req.MessageID)
	form.Set("conversation_id", req.ConversationID)
	form.Set("query", req.Query)
	form.Set("context_length", strconv.Itoa(req.ContextLength))
	for _, p := range req.Images {
		form.Add("images", p)
	}
	for _, p := range req.Files {
		form.Add("files", p)
	}
	for _, name := range req.Corpora {
		form.Add("rags", name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/chat"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: "send", URL: c.endpoint("/api/chat"), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.do("send", httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, remoteError("send", resp)
	}
	return resp.Body, nil
}
