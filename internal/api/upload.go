package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// UploadKind selects the multipart field, and with it the server-side
// directory, for an upload.
type UploadKind string

const (
	UploadImage UploadKind = "images"
	UploadFile  UploadKind = "files"
)

// UploadedFile describes one stored file as reported by the service.
type UploadedFile struct {
	Name string `json:"name"` // original file name
	Path string `json:"path"` // server-side name, used to reference or delete the file
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Upload stores one file under the given kind and returns its remote
// descriptor.
func (c *Client) Upload(ctx context.Context, kind UploadKind, name string, r io.Reader) (*UploadedFile, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	part, err := mw.CreateFormFile(string(kind), name)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing form: %w", err)
	}

	var result struct {
		Files []UploadedFile `json:"files"`
	}
	if err := c.doJSON(ctx, "upload", http.MethodPost, "/api/upload", body, mw.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	// The service swallows per-file storage failures and reports them as
	// an empty list.
	if len(result.Files) == 0 {
		return nil, &RemoteError{Op: "upload", Status: http.StatusOK, Detail: "service stored no files"}
	}
	return &result.Files[0], nil
}

// DeleteFile removes an uploaded file by its server-side path.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	q := url.Values{"path": {path}}
	return c.doJSON(ctx, "delete file", http.MethodDelete, "/api/delete?"+q.Encode(), nil, "", nil)
}

// FileURL resolves a server-side file path to a fetchable URL.
func (c *Client) FileURL(ctx context.Context, filePath string) (string, error) {
	q := url.Values{"file_path": {filePath}}
	var result struct {
		URL string `json:"url"`
	}
	if err := c.getJSON(ctx, "file url", "/api/file-url?"+q.Encode(), &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// Download fetches a stored or generated file by its resolved URL. A
// server-relative URL is resolved against the client's base URL. The
// caller owns the ReadCloser; there is no client-side deadline, the
// context bounds the transfer.
func (c *Client) Download(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	if len(fileURL) > 0 && fileURL[0] == '/' {
		fileURL = c.endpoint(fileURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.do("download", req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, remoteError("download", resp)
	}
	return resp.Body, nil
}
