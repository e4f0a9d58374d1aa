package workdir

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

const trashPrefix = ".trash-"

// Manager hands out exclusively owned working directories under one root.
type Manager struct {
	root     string
	logger   *slog.Logger
	inFlight *xsync.MapOf[string, struct{}]
	wg       sync.WaitGroup
}

func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workdir root %s: %w", root, err)
	}
	m := &Manager{
		root:     root,
		logger:   logger.With("component", "workdir"),
		inFlight: xsync.NewMapOf[string, struct{}](),
	}
	m.sweep()
	return m, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a fresh directory that no other run shares.
func (m *Manager) Acquire() (string, error) {
	dir := filepath.Join(m.root, uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	return dir, nil
}

// Release makes dir disappear from its path before returning and deletes its
// contents in the background. Failures are logged only. Releasing the same
// directory twice is a no-op.
func (m *Manager) Release(dir string) {
	if _, loaded := m.inFlight.LoadOrStore(dir, struct{}{}); loaded {
		return
	}

	trash := filepath.Join(m.root, trashPrefix+uuid.NewString())
	if err := os.Rename(dir, trash); err != nil {
		if os.IsNotExist(err) {
			m.inFlight.Delete(dir)
			return
		}
		m.logger.Warn("failed to move working directory aside, removing in place",
			"dir", dir, "error", err)
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Error("failed to remove working directory", "dir", dir, "error", err)
		}
		m.inFlight.Delete(dir)
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.inFlight.Delete(dir)
		if err := os.RemoveAll(trash); err != nil {
			m.logger.Error("failed to remove working directory", "dir", trash, "error", err)
		}
	}()
}

// Wait blocks until all background deletions finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// sweep removes leftovers of a previous process that exited mid-deletion.
func (m *Manager) sweep() {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		m.logger.Warn("failed to list workdir root", "root", m.root, "error", err)
		return
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), trashPrefix) {
			continue
		}
		path := filepath.Join(m.root, e.Name())
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := os.RemoveAll(path); err != nil {
				m.logger.Warn("failed to remove stale trash", "dir", path, "error", err)
			}
		}()
	}
}
