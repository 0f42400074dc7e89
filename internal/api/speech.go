package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// Transcribe submits WAV audio and returns the recognized text. An empty
// result means the service heard no speech; callers decide how to surface
// that.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	part, err := mw.CreateFormFile("audio_file", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalizing form: %w", err)
	}

	var result struct {
		FullText string `json:"full_text"`
	}
	if err := c.doJSON(ctx, "transcribe", http.MethodPost, "/api/transcribe", body, mw.FormDataContentType(), &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.FullText), nil
}
