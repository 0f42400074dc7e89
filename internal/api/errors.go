package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response body is read for the
// Detail field.
const maxErrorBody = 8 << 10

// TransportError reports a network-level failure: the service never
// answered, or the connection broke before the response completed.
type TransportError struct {
	Op  string // operation that failed, e.g. "send", "upload"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError reports a non-2xx response from the service. Detail carries
// the server's explanation when the body includes one.
type RemoteError struct {
	Op     string
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: service returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: service returned %d: %s", e.Op, e.Status, e.Detail)
}

// IsNotFound reports whether err is a RemoteError with status 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// remoteError builds a RemoteError from a non-2xx response, extracting the
// {"detail": "..."} payload when present and falling back to the raw body.
func remoteError(op string, resp *http.Response) *RemoteError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	detail := ""
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		detail = payload.Detail
	} else {
		detail = strings.TrimSpace(string(body))
	}

	return &RemoteError{Op: op, Status: resp.StatusCode, Detail: detail}
}
