package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testClient starts a server for h and returns a client pointed at it,
// with fast retries so failure paths do not slow the suite down.
func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL,
		WithLogger(discardLogger()),
		WithRateLimit(1000, 1000),
		WithRetry(RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     4 * time.Millisecond,
		}),
	)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", srv.URL, err)
	}
	return c
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "http", baseURL: "http://localhost:8000", wantErr: false},
		{name: "https", baseURL: "https://agent.example.com", wantErr: false},
		{name: "missing scheme", baseURL: "localhost:8000", wantErr: true},
		{name: "unsupported scheme", baseURL: "ftp://localhost", wantErr: true},
		{name: "missing host", baseURL: "http://", wantErr: true},
		{name: "empty", baseURL: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New("http://localhost:8000/")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if got := c.BaseURL(); got != "http://localhost:8000" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://localhost:8000")
	}
}

func TestGetJSON_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	})

	records, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations() failed after retries: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ListConversations() = %d records, want 0", len(records))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestGetJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "File not found"}`))
	})

	_, err := c.FileURL(context.Background(), "missing.png")
	if err == nil {
		t.Fatal("FileURL() succeeded, want error")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (404 must not be retried)", got)
	}
}

func TestGetJSON_ExhaustedRetriesReturnLastError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "model crashed"}`))
	})

	_, err := c.ListConversations(context.Background())
	if err == nil {
		t.Fatal("ListConversations() succeeded, want error")
	}

	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a *RemoteError", err)
	}
	if re.Status != http.StatusInternalServerError {
		t.Errorf("RemoteError.Status = %d, want %d", re.Status, http.StatusInternalServerError)
	}
	if re.Detail != "model crashed" {
		t.Errorf("RemoteError.Detail = %q, want %q", re.Detail, "model crashed")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3 (initial + 2 retries)", got)
	}
}

func TestMutations_NeverRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	if err := c.DeleteConversation(context.Background(), "conv-1"); err == nil {
		t.Fatal("DeleteConversation() succeeded, want error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (mutations must not be retried)", got)
	}
}

func TestDo_WrapsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	err = c.DeleteConversation(context.Background(), "conv-1")
	if err == nil {
		t.Fatal("DeleteConversation() succeeded against closed server")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a *TransportError", err)
	}
	if te.Op != "delete history" {
		t.Errorf("TransportError.Op = %q, want %q", te.Op, "delete history")
	}
}

func TestGetJSON_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ListConversations(ctx)
	if err == nil {
		t.Fatal("ListConversations() succeeded, want error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error %v does not wrap context.Canceled", err)
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "transport failure",
			err:  &TransportError{Op: "send", URL: "http://x", Err: errors.New("connection refused")},
			want: true,
		},
		{
			name: "throttled",
			err:  &RemoteError{Op: "list history", Status: http.StatusTooManyRequests},
			want: true,
		},
		{
			name: "server error",
			err:  &RemoteError{Op: "list history", Status: http.StatusBadGateway},
			want: true,
		},
		{
			name: "not found",
			err:  &RemoteError{Op: "get history", Status: http.StatusNotFound},
			want: false,
		},
		{
			name: "bad request",
			err:  &RemoteError{Op: "delete file", Status: http.StatusBadRequest},
			want: false,
		},
		{
			name: "explicit cancel",
			err:  &TransportError{Op: "send", URL: "http://x", Err: context.Canceled},
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRemoteError_FallsBackToRawBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Invalid path"))
	})

	err := c.DeleteFile(context.Background(), "x.png")
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a *RemoteError", err)
	}
	if re.Detail != "Invalid path" {
		t.Errorf("RemoteError.Detail = %q, want %q", re.Detail, "Invalid path")
	}
}
