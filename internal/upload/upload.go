// Package upload stages attachments for the next outgoing message.
//
// Files are uploaded to the service as soon as they are added and held as
// local slots until the message is sent or the user removes them. The
// manager enforces a per-kind cap and never talks to the service when the
// cap already rules an add out.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/parleychat/parley/internal/api"
)

// DefaultCap is the per-kind slot limit.
const DefaultCap = 5

// ErrQuotaExceeded reports an add against a full kind. Nothing is
// uploaded and no state changes.
var ErrQuotaExceeded = errors.New("upload staging is full for this kind")

// Service is the remote side of staging.
type Service interface {
	Upload(ctx context.Context, kind api.UploadKind, name string, r io.Reader) (*api.UploadedFile, error)
	DeleteFile(ctx context.Context, path string) error
}

// File is one client-side file to stage.
type File struct {
	Name   string
	Reader io.Reader
}

// Slot pairs a staged file with its server-side descriptor. Path is the
// value the send payload carries.
type Slot struct {
	Kind api.UploadKind
	Name string // original client file name
	Path string // server-side name
	URL  string
	Size int64
}

// Config configures a Manager.
type Config struct {
	Service   Service
	MaxImages int          // per-kind cap, zero means DefaultCap
	MaxFiles  int          // per-kind cap, zero means DefaultCap
	Logger    *slog.Logger // nil means slog.Default()
}

// Manager owns the staged slots. Mutations are serialized so the cap
// holds under concurrent adds; reads never wait on an in-flight upload.
type Manager struct {
	service   Service
	maxImages int
	maxFiles  int
	logger    *slog.Logger

	opMu sync.Mutex // serializes Add/Remove/Clear/Release end to end

	mu    sync.Mutex // guards slots
	slots map[api.UploadKind][]Slot
}

// NewManager creates a staging manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Service == nil {
		return nil, errors.New("upload: service is required")
	}
	if cfg.MaxImages == 0 {
		cfg.MaxImages = DefaultCap
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = DefaultCap
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		service:   cfg.Service,
		maxImages: cfg.MaxImages,
		maxFiles:  cfg.MaxFiles,
		logger:    cfg.Logger,
		slots:     make(map[api.UploadKind][]Slot),
	}, nil
}

func (m *Manager) kindCap(kind api.UploadKind) int {
	if kind == api.UploadImage {
		return m.maxImages
	}
	return m.maxFiles
}

// Add uploads files and stages the successful ones, preserving arrival
// order. A full kind rejects with ErrQuotaExceeded before any remote
// call. When the batch is larger than the remaining room, the earliest
// files fill the room and the excess is dropped with a warning.
//
// Per-file upload failures are logged and skipped; Add reports an error
// only when no file could be staged at all.
func (m *Manager) Add(ctx context.Context, kind api.UploadKind, files []File) ([]Slot, error) {
	if len(files) == 0 {
		return nil, nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	room := m.kindCap(kind) - m.Count(kind)
	if room <= 0 {
		return nil, fmt.Errorf("%w: %d %s already staged", ErrQuotaExceeded, m.kindCap(kind), kind)
	}
	if len(files) > room {
		m.logger.Warn("dropping files beyond the staging cap",
			"kind", kind,
			"submitted", len(files),
			"kept", room,
		)
		files = files[:room]
	}

	var (
		added []Slot
		errs  []error
	)
	for _, f := range files {
		stored, err := m.service.Upload(ctx, kind, f.Name, f.Reader)
		if err != nil {
			m.logger.Error("upload failed",
				"kind", kind,
				"name", f.Name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		slot := Slot{
			Kind: kind,
			Name: stored.Name,
			Path: stored.Path,
			URL:  stored.URL,
			Size: stored.Size,
		}
		m.mu.Lock()
		m.slots[kind] = append(m.slots[kind], slot)
		m.mu.Unlock()
		added = append(added, slot)
	}

	if len(added) == 0 {
		return nil, errors.Join(errs...)
	}
	return added, nil
}

// AddPaths opens local files by path and stages them under kind. The
// display name is the path's base name.
func (m *Manager) AddPaths(ctx context.Context, kind api.UploadKind, paths ...string) ([]Slot, error) {
	files := make([]File, 0, len(paths))
	closers := make([]io.Closer, 0, len(paths))
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", p, err)
		}
		closers = append(closers, f)
		files = append(files, File{Name: filepath.Base(p), Reader: f})
	}
	return m.Add(ctx, kind, files)
}

// Remove deletes the slot at index within kind. The remote delete is
// best-effort; a failure is logged and the local slot goes away anyway.
func (m *Manager) Remove(ctx context.Context, kind api.UploadKind, index int) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	list := m.slots[kind]
	if index < 0 || index >= len(list) {
		m.mu.Unlock()
		return fmt.Errorf("upload: no %s slot at index %d", kind, index)
	}
	slot := list[index]
	m.slots[kind] = append(list[:index:index], list[index+1:]...)
	m.mu.Unlock()

	if err := m.service.DeleteFile(ctx, slot.Path); err != nil {
		m.logger.Warn("remote delete failed, slot removed locally",
			"kind", kind,
			"path", slot.Path,
			"error", err,
		)
	}
	return nil
}

// Clear discards every slot and best-effort-deletes the remote objects.
// Used when the user abandons staged attachments.
func (m *Manager) Clear(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	var all []Slot
	for kind, list := range m.slots {
		all = append(all, list...)
		delete(m.slots, kind)
	}
	m.mu.Unlock()

	for _, slot := range all {
		if err := m.service.DeleteFile(ctx, slot.Path); err != nil {
			m.logger.Warn("remote delete failed during clear",
				"path", slot.Path,
				"error", err,
			)
		}
	}
}

// Release empties the slots without deleting the remote objects. Called
// after a send: the files now belong to the conversation.
func (m *Manager) Release() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for kind := range m.slots {
		delete(m.slots, kind)
	}
}

// Snapshot returns a copy of the staged slots, images first, each kind in
// arrival order.
func (m *Manager) Snapshot() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Slot, 0, len(m.slots[api.UploadImage])+len(m.slots[api.UploadFile]))
	out = append(out, m.slots[api.UploadImage]...)
	out = append(out, m.slots[api.UploadFile]...)
	return out
}

// Paths returns the server-side paths staged under kind, in arrival
// order. This is the shape the send payload carries.
func (m *Manager) Paths(kind api.UploadKind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.slots[kind]
	out := make([]string, len(list))
	for i, slot := range list {
		out[i] = slot.Path
	}
	return out
}

// Count returns the number of slots staged under kind.
func (m *Manager) Count(kind api.UploadKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots[kind])
}
