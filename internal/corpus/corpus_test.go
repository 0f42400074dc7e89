package corpus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/internal/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeService keeps corpora in memory and mimics the remote contract:
// rebuilding an existing name is reported as skipped, renaming or
// deleting an unknown name fails.
type fakeService struct {
	mu      sync.Mutex
	corpora map[string][]string
	uploads []string

	failUploads map[string]error
	buildErr    error
	renameErr   error
	deleteErr   error

	buildStarted chan struct{}
	buildRelease chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{corpora: make(map[string][]string)}
}

func (f *fakeService) Upload(ctx context.Context, kind api.UploadKind, name string, r io.Reader) (*api.UploadedFile, error) {
	if err := f.failUploads[name]; err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := "uploads/" + name
	f.uploads = append(f.uploads, path)
	return &api.UploadedFile{Name: name, Path: path, URL: "/" + path, Size: int64(len(data))}, nil
}

func (f *fakeService) ListCorpora(ctx context.Context) ([]api.CorpusInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.CorpusInfo, 0, len(f.corpora))
	for name, files := range f.corpora {
		info := api.CorpusInfo{Name: name, CreatedAt: "2026-08-20T10:00:00"}
		for _, fn := range files {
			info.Files = append(info.Files, api.CorpusFile{Name: fn, Size: 1024, CreatedAt: info.CreatedAt})
		}
		out = append(out, info)
	}
	return out, nil
}

func (f *fakeService) BuildCorpus(ctx context.Context, name string, files []string) (*api.BuildResult, error) {
	if f.buildStarted != nil {
		close(f.buildStarted)
		f.buildStarted = nil
		<-f.buildRelease
	}
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.corpora[name]; ok {
		return &api.BuildResult{Success: true, Skipped: true}, nil
	}
	f.corpora[name] = files
	return &api.BuildResult{Success: true}, nil
}

func (f *fakeService) RenameCorpus(ctx context.Context, oldName, newName string) error {
	if f.renameErr != nil {
		return f.renameErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	files, ok := f.corpora[oldName]
	if !ok {
		return &api.RemoteError{Op: "rename corpus", Status: 404, Detail: "rag不存在"}
	}
	delete(f.corpora, oldName)
	f.corpora[newName] = files
	return nil
}

func (f *fakeService) DeleteCorpus(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.corpora[name]; !ok {
		return &api.RemoteError{Op: "delete corpus", Status: 404, Detail: "rag不存在"}
	}
	delete(f.corpora, name)
	return nil
}

func newTestManager(t *testing.T, svc Service, confirm ConfirmFunc) *Manager {
	t.Helper()
	if confirm == nil {
		confirm = func(string) (bool, error) { return true, nil }
	}
	m, err := NewManager(Config{Service: svc, Confirm: confirm, Logger: discardLogger()})
	require.NoError(t, err)
	return m
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewManager(Config{Confirm: func(string) (bool, error) { return true, nil }})
	assert.Error(t, err, "nil service accepted")

	_, err = NewManager(Config{Service: newFakeService()})
	assert.Error(t, err, "nil confirmation gate accepted")
}

// TestManager_Build covers fresh builds and the idempotent rebuild of
// an existing name.
func TestManager_Build(t *testing.T) {
	t.Parallel()

	t.Run("fresh build activates", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, nil)

		skipped, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.NoError(t, err)
		assert.False(t, skipped)
		assert.True(t, m.Active("docs"))
		assert.Equal(t, []string{"uploads/a.pdf"}, svc.corpora["docs"])
	})

	t.Run("existing name is success with skip", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, nil)

		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.NoError(t, err)
		m.Deactivate("docs")

		skipped, err := m.Build(context.Background(), "docs", []string{"uploads/b.pdf"})
		require.NoError(t, err)
		assert.True(t, skipped)
		assert.True(t, m.Active("docs"), "rebuild must reactivate the corpus")
		assert.Len(t, svc.corpora, 1, "rebuild must not duplicate the corpus")
		assert.Equal(t, []string{"uploads/a.pdf"}, svc.corpora["docs"], "skipped build must not replace the index")
	})

	t.Run("remote failure leaves active set alone", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		svc.buildErr = errors.New("index backend down")
		m := newTestManager(t, svc, nil)

		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.Error(t, err)
		assert.False(t, m.Active("docs"))
	})
}

func TestManager_UploadDocuments(t *testing.T) {
	t.Parallel()

	t.Run("returns server paths in order", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, nil)

		paths, err := m.UploadDocuments(context.Background(), []Document{
			{Name: "a.pdf", Reader: strings.NewReader("aaa")},
			{Name: "b.md", Reader: strings.NewReader("b")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"uploads/a.pdf", "uploads/b.md"}, paths)
	})

	t.Run("skips individual failures", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		svc.failUploads = map[string]error{"bad.pdf": errors.New("storage full")}
		m := newTestManager(t, svc, nil)

		paths, err := m.UploadDocuments(context.Background(), []Document{
			{Name: "bad.pdf", Reader: strings.NewReader("x")},
			{Name: "good.pdf", Reader: strings.NewReader("y")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"uploads/good.pdf"}, paths)
	})

	t.Run("errors when nothing was stored", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		svc.failUploads = map[string]error{"bad.pdf": errors.New("storage full")}
		m := newTestManager(t, svc, nil)

		_, err := m.UploadDocuments(context.Background(), []Document{
			{Name: "bad.pdf", Reader: strings.NewReader("x")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage full")
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, newFakeService(), nil)
		paths, err := m.UploadDocuments(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

func TestManager_UploadPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "手册.md")
	require.NoError(t, os.WriteFile(file, []byte("# 产品手册"), 0o644))

	svc := newFakeService()
	m := newTestManager(t, svc, nil)

	paths, err := m.UploadPaths(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/手册.md"}, paths)

	_, err = m.UploadPaths(context.Background(), filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestManager_ActiveSet(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newFakeService(), nil)

	// Membership does not require the corpus to exist remotely.
	m.Activate("合同")
	m.Activate("docs")
	m.Activate("docs")
	assert.Equal(t, []string{"docs", "合同"}, m.ActiveNames())
	assert.True(t, m.Active("docs"))

	m.Deactivate("docs")
	assert.Equal(t, []string{"合同"}, m.ActiveNames())
	assert.False(t, m.Active("docs"))

	m.Deactivate("never-activated")
	assert.Equal(t, []string{"合同"}, m.ActiveNames())
}

func TestManager_List(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	m := newTestManager(t, svc, nil)

	_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
	require.NoError(t, err)
	_, err = m.Build(context.Background(), "laws", []string{"uploads/b.pdf"})
	require.NoError(t, err)
	m.Deactivate("laws")

	out, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	byName := make(map[string]Corpus, len(out))
	for _, c := range out {
		byName[c.Name] = c
	}
	assert.True(t, byName["docs"].Active)
	assert.False(t, byName["laws"].Active)
	require.Len(t, byName["docs"].Files, 1)
	assert.Equal(t, "a.pdf", byName["docs"].Files[0].Name)
}

func TestManager_Rename(t *testing.T) {
	t.Parallel()

	t.Run("active set follows the new name", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, nil)

		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.NoError(t, err)

		require.NoError(t, m.Rename(context.Background(), "docs", "manuals"))
		assert.False(t, m.Active("docs"))
		assert.True(t, m.Active("manuals"))
		_, ok := svc.corpora["docs"]
		assert.False(t, ok)
		_, ok = svc.corpora["manuals"]
		assert.True(t, ok)
	})

	t.Run("unknown name fails and changes nothing", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, nil)

		m.Activate("ghost")
		err := m.Rename(context.Background(), "ghost", "spirit")
		require.Error(t, err)
		assert.True(t, m.Active("ghost"))
		assert.False(t, m.Active("spirit"))
	})

	t.Run("same name is a no-op", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		svc.renameErr = errors.New("must not be called")
		m := newTestManager(t, svc, nil)
		assert.NoError(t, m.Rename(context.Background(), "docs", "docs"))
	})
}

func TestManager_Delete(t *testing.T) {
	t.Parallel()

	t.Run("confirmed delete deactivates", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		var prompt string
		m := newTestManager(t, svc, func(p string) (bool, error) {
			prompt = p
			return true, nil
		})

		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.NoError(t, err)

		require.NoError(t, m.Delete(context.Background(), "docs"))
		assert.Contains(t, prompt, "docs")
		assert.False(t, m.Active("docs"))
		assert.Empty(t, svc.corpora)
	})

	t.Run("declined gate blocks the remote call", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, func(string) (bool, error) { return false, nil })

		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.NoError(t, err)

		err = m.Delete(context.Background(), "docs")
		assert.ErrorIs(t, err, ErrNotConfirmed)
		assert.True(t, m.Active("docs"))
		assert.Len(t, svc.corpora, 1)
	})

	t.Run("gate failure blocks the remote call", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, func(string) (bool, error) { return false, errors.New("stdin closed") })

		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.NoError(t, err)

		err = m.Delete(context.Background(), "docs")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotConfirmed)
		assert.Len(t, svc.corpora, 1)
	})

	t.Run("remote failure keeps the corpus active", func(t *testing.T) {
		t.Parallel()
		svc := newFakeService()
		m := newTestManager(t, svc, nil)

		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		require.NoError(t, err)
		svc.deleteErr = errors.New("index busy")

		err = m.Delete(context.Background(), "docs")
		require.Error(t, err)
		assert.True(t, m.Active("docs"))
	})
}

// TestManager_SerializesPerName checks that mutations queue per corpus
// name while other names stay independent.
func TestManager_SerializesPerName(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	started := make(chan struct{})
	release := make(chan struct{})
	svc.buildStarted = started
	svc.buildRelease = release
	m := newTestManager(t, svc, nil)

	buildDone := make(chan error, 1)
	go func() {
		_, err := m.Build(context.Background(), "docs", []string{"uploads/a.pdf"})
		buildDone <- err
	}()
	<-started

	// A different name is not blocked by the in-flight build.
	m.Activate("other")
	assert.True(t, m.Active("other"))

	activateDone := make(chan struct{})
	go func() {
		m.Deactivate("docs")
		close(activateDone)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-activateDone:
		t.Fatal("mutation on docs completed while a build held its lock")
	default:
	}

	close(release)
	require.NoError(t, <-buildDone)
	<-activateDone

	// The queued deactivation ran after the build's activation.
	assert.False(t, m.Active("docs"))
}
