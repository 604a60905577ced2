package storage

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"sitemapgen/pkg/errors"
)

// Manager handles file operations inside the output directory.
// Every write goes through a temporary file followed by a rename so readers
// never observe a partially written file.
type Manager struct {
	fs billy.Filesystem
	mu sync.Mutex
}

// NewManager creates a manager rooted at dir on the local disk, creating the
// directory if needed.
func NewManager(dir string) (*Manager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeFilesystem, err, "failed to resolve output directory")
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeFilesystem, err, "failed to create output directory")
	}
	// the bound backend hands out plain OS files, so temp files can be synced
	return NewWithFilesystem(osfs.New(abs, osfs.WithBoundOS())), nil
}

// NewInMemory creates a manager backed by an in-memory filesystem
func NewInMemory() *Manager {
	return NewWithFilesystem(memfs.New())
}

// NewWithFilesystem wraps an existing billy filesystem
func NewWithFilesystem(fs billy.Filesystem) *Manager {
	return &Manager{fs: fs}
}

// Filesystem returns the underlying billy filesystem
func (m *Manager) Filesystem() billy.Filesystem {
	return m.fs
}

// Root returns the root path of the underlying filesystem
func (m *Manager) Root() string {
	return m.fs.Root()
}

// WriteAtomic replaces name with data. The content is written to a sibling
// temporary file, synced when the backend supports it, and renamed over name.
func (m *Manager) WriteAtomic(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := path.Dir(name)
	if dir != "." {
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to create directory for %s", name))
		}
	}

	tmp, err := m.fs.TempFile(dir, "."+path.Base(name)+".tmp")
	if err != nil {
		return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to create temporary file for %s", name))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		m.fs.Remove(tmpName)
		return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to write %s", name))
	}

	if _, err := syncFile(tmp); err != nil {
		tmp.Close()
		m.fs.Remove(tmpName)
		return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to sync %s", name))
	}

	if err := tmp.Close(); err != nil {
		m.fs.Remove(tmpName)
		return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to close %s", name))
	}

	if err := m.fs.Rename(tmpName, name); err != nil {
		m.fs.Remove(tmpName)
		return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to rename temporary file to %s", name))
	}

	return nil
}

// syncFile flushes f to stable storage and reports whether the backend
// supports it. In-memory files have nothing to sync.
func syncFile(f billy.File) (bool, error) {
	s, ok := f.(interface{ Sync() error })
	if !ok {
		return false, nil
	}
	return true, s.Sync()
}

// WriteFromReader copies r into name atomically
func (m *Manager) WriteFromReader(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to read content for %s", name))
	}
	return m.WriteAtomic(name, data)
}

// ReadFile returns the content of name. Use IsNotExist to detect a missing file.
func (m *Manager) ReadFile(name string) ([]byte, error) {
	data, err := util.ReadFile(m.fs, name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to read %s", name))
	}
	return data, nil
}

// Exists reports whether name exists
func (m *Manager) Exists(name string) (bool, error) {
	_, err := m.fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to stat %s", name))
	}
}

// List returns the names of the regular files directly inside the root,
// sorted lexically. Directories are skipped.
func (m *Manager) List() ([]string, error) {
	entries, err := m.fs.ReadDir(".")
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeFilesystem, err, "failed to list output directory")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes name. Removing a file that does not exist is not an error.
func (m *Manager) Remove(name string) error {
	if err := m.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to remove %s", name))
	}
	return nil
}

// IsNotExist reports whether err was caused by a missing file
func IsNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
