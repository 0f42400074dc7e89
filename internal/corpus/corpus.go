// Package corpus manages named retrieval corpora: document staging,
// idempotent builds, the active set consulted by the next query, and
// confirmed deletion. Mutations are serialized per corpus name; calls
// for the same name queue, calls for different names run independently.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/parleychat/parley/internal/api"
)

// ErrNotConfirmed reports a deletion the user declined at the gate.
var ErrNotConfirmed = errors.New("deletion not confirmed")

// Service is the remote side of corpus management. *api.Client
// implements it.
type Service interface {
	Upload(ctx context.Context, kind api.UploadKind, name string, r io.Reader) (*api.UploadedFile, error)
	ListCorpora(ctx context.Context) ([]api.CorpusInfo, error)
	BuildCorpus(ctx context.Context, name string, files []string) (*api.BuildResult, error)
	RenameCorpus(ctx context.Context, oldName, newName string) error
	DeleteCorpus(ctx context.Context, name string) error
}

// ConfirmFunc is the blocking yes/no gate in front of irreversible
// operations. It receives a human-readable prompt.
type ConfirmFunc func(prompt string) (bool, error)

// Document is a source file staged for a corpus build.
type Document struct {
	Name   string
	Reader io.Reader
}

// Corpus is a server-side corpus decorated with the local active flag.
type Corpus struct {
	Name      string
	CreatedAt string
	Files     []api.CorpusFile
	Active    bool
}

// Config configures a Manager.
type Config struct {
	Service Service
	Confirm ConfirmFunc
	Logger  *slog.Logger // nil means slog.Default()
}

// Manager owns the corpus lifecycle and the active set. Safe for
// concurrent use.
type Manager struct {
	service Service
	confirm ConfirmFunc
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
	locks  map[string]*sync.Mutex
}

// NewManager creates a corpus manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Service == nil {
		return nil, errors.New("corpus: service is required")
	}
	if cfg.Confirm == nil {
		return nil, errors.New("corpus: confirmation gate is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		service: cfg.Service,
		confirm: cfg.Confirm,
		logger:  cfg.Logger,
		active:  make(map[string]struct{}),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// nameLock returns the mutex serializing mutations of one corpus name.
func (m *Manager) nameLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// UploadDocuments pushes source documents through the generic upload
// boundary and returns their server-side paths, build-ready. Individual
// failures are logged and skipped; the call errors only when nothing
// was stored.
func (m *Manager) UploadDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	paths := make([]string, 0, len(docs))
	var failures []error
	for _, d := range docs {
		stored, err := m.service.Upload(ctx, api.UploadFile, d.Name, d.Reader)
		if err != nil {
			m.logger.Warn("document upload failed", "name", d.Name, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		paths = append(paths, stored.Path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no documents uploaded: %w", errors.Join(failures...))
	}
	return paths, nil
}

// UploadPaths uploads local files by path. See UploadDocuments.
func (m *Manager) UploadPaths(ctx context.Context, paths ...string) ([]string, error) {
	docs := make([]Document, 0, len(paths))
	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", p, err)
		}
		files = append(files, f)
		docs = append(docs, Document{Name: filepath.Base(p), Reader: f})
	}
	return m.UploadDocuments(ctx, docs)
}

// Build indexes uploaded documents under name and marks the corpus
// active. Building a name that already exists is success: the service
// reports it skipped the work, no duplicate is created, and the corpus
// is activated all the same. The returned bool is that skip report.
func (m *Manager) Build(ctx context.Context, name string, files []string) (bool, error) {
	l := m.nameLock(name)
	l.Lock()
	defer l.Unlock()

	res, err := m.service.BuildCorpus(ctx, name, files)
	if err != nil {
		return false, fmt.Errorf("building corpus %q: %w", name, err)
	}
	if !res.Success {
		return false, fmt.Errorf("building corpus %q: service reported failure", name)
	}

	m.mu.Lock()
	m.active[name] = struct{}{}
	m.mu.Unlock()

	if res.Skipped {
		m.logger.Info("corpus already built, activated", "name", name)
	} else {
		m.logger.Info("corpus built", "name", name, "files", len(files))
	}
	return res.Skipped, nil
}

// Activate adds name to the active set consulted by the next query.
// Membership is independent of whether the corpus exists remotely.
func (m *Manager) Activate(name string) {
	l := m.nameLock(name)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	m.active[name] = struct{}{}
	m.mu.Unlock()
}

// Deactivate removes name from the active set.
func (m *Manager) Deactivate(name string) {
	l := m.nameLock(name)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	delete(m.active, name)
	m.mu.Unlock()
}

// Active reports whether name is in the active set.
func (m *Manager) Active(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[name]
	return ok
}

// ActiveNames returns the active set sorted by name.
func (m *Manager) ActiveNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.active))
	for name := range m.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List fetches the server-side corpora decorated with the local active
// flag.
func (m *Manager) List(ctx context.Context) ([]Corpus, error) {
	infos, err := m.service.ListCorpora(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing corpora: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Corpus, 0, len(infos))
	for _, in := range infos {
		_, active := m.active[in.Name]
		out = append(out, Corpus{
			Name:      in.Name,
			CreatedAt: in.CreatedAt,
			Files:     in.Files,
			Active:    active,
		})
	}
	return out, nil
}

// Rename renames a built corpus. Active-set membership follows the new
// name. Renaming a corpus that was never built fails remotely and
// changes nothing locally.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	first, second := oldName, newName
	if second < first {
		first, second = second, first
	}
	fl, sl := m.nameLock(first), m.nameLock(second)
	fl.Lock()
	defer fl.Unlock()
	sl.Lock()
	defer sl.Unlock()

	if err := m.service.RenameCorpus(ctx, oldName, newName); err != nil {
		return fmt.Errorf("renaming corpus %q: %w", oldName, err)
	}

	m.mu.Lock()
	if _, ok := m.active[oldName]; ok {
		delete(m.active, oldName)
		m.active[newName] = struct{}{}
	}
	m.mu.Unlock()

	m.logger.Info("corpus renamed", "from", oldName, "to", newName)
	return nil
}

// Delete removes a corpus permanently after the confirmation gate
// passes. A declined gate is ErrNotConfirmed and nothing is touched; a
// remote failure leaves the active set unchanged.
func (m *Manager) Delete(ctx context.Context, name string) error {
	l := m.nameLock(name)
	l.Lock()
	defer l.Unlock()

	ok, err := m.confirm(fmt.Sprintf("delete corpus %q and its index permanently?", name))
	if err != nil {
		return fmt.Errorf("confirming deletion: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}

	if err := m.service.DeleteCorpus(ctx, name); err != nil {
		return fmt.Errorf("deleting corpus %q: %w", name, err)
	}

	m.mu.Lock()
	delete(m.active, name)
	m.mu.Unlock()

	m.logger.Info("corpus deleted", "name", name)
	return nil
}
