package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parleychat/parley/internal/transcript"
)

// Downloader fetches a stored file by its resolved URL. *api.Client
// implements it.
type Downloader interface {
	Download(ctx context.Context, fileURL string) (io.ReadCloser, error)
}

// Store downloads message attachments into a local directory.
//
// An existing file is never overwritten: a second artifact with the same
// name gets a numeric suffix before the extension (report.pdf,
// report-1.pdf, ...).
type Store struct {
	client Downloader
	logger *slog.Logger
}

// NewStore creates a store downloading through client.
func NewStore(client Downloader, logger *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("artifact: downloader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}, nil
}

// Save downloads one attachment into dir and returns its local record.
// The directory is created if missing.
func (s *Store) Save(ctx context.Context, att transcript.Attachment, dir string) (*Saved, error) {
	if err := ValidateFilename(att.Name); err != nil {
		return nil, fmt.Errorf("attachment %q: %w", att.Name, err)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	body, err := s.client.Download(ctx, att.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", att.Name, err)
	}
	defer body.Close()

	path, err := uniquePath(dir, att.Name)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// A torn download is worse than none
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	s.logger.Debug("artifact saved",
		"name", att.Name,
		"path", path,
		"bytes", n,
	)
	return &Saved{
		Name:    att.Name,
		Kind:    att.Kind,
		URL:     att.URL,
		Path:    path,
		Size:    n,
		SavedAt: time.Now(),
	}, nil
}

// SaveMessage downloads every attachment of one message into dir. A
// message without attachments is ErrNoArtifacts. Individual failures
// are collected; the successfully saved artifacts are returned either
// way.
func (s *Store) SaveMessage(ctx context.Context, msg *transcript.Message, dir string) ([]Saved, error) {
	if msg == nil || len(msg.Attachments) == 0 {
		return nil, ErrNoArtifacts
	}

	var (
		saved []Saved
		errs  []error
	)
	for _, att := range msg.Attachments {
		rec, err := s.Save(ctx, att, dir)
		if err != nil {
			s.logger.Warn("saving artifact failed", "name", att.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		saved = append(saved, *rec)
	}
	return saved, errors.Join(errs...)
}

// uniqueLimit bounds the suffix search; a directory with this many name
// collisions is a caller bug.
const uniqueLimit = 1000

// uniquePath returns dir/name, suffixed with -1, -2, ... before the
// extension while the file already exists.
func uniquePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		if i > uniqueLimit {
			return "", fmt.Errorf("artifact: no free name for %s in %s", name, dir)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}
