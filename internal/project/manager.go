// Package project manages per-project storage: one SQLite database
// per project under the configured data directory, each wrapped in its
// own engine. Projects share nothing.
package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/stratum/internal/config"
	"github.com/roach88/stratum/internal/engine"
	"github.com/roach88/stratum/internal/store"
)

// Manager creates and opens project engines, caching open stores so a
// project's single-writer pool is shared across requests.
type Manager struct {
	dataDir string
	clock   engine.Clock
	log     *zap.SugaredLogger

	mu   sync.Mutex
	open map[string]*engine.Engine
}

// NewManager builds a manager over cfg.DataDir. A nil clock defaults
// to the wall clock; a nil logger is replaced with a nop.
func NewManager(cfg *config.Config, clock engine.Clock, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		dataDir: cfg.DataDir,
		clock:   clock,
		log:     logger,
		open:    make(map[string]*engine.Engine),
	}
}

// ValidateID rejects project ids that could escape the data directory
// or collide with hidden files.
func ValidateID(projectID string) error {
	if projectID == "" {
		return engine.Errorf(engine.CodeValidation, "project id is required")
	}
	if strings.HasPrefix(projectID, ".") {
		return engine.Errorf(engine.CodeValidation, "project id %q may not start with a dot", projectID)
	}
	if strings.ContainsAny(projectID, `/\`) || projectID != filepath.Base(projectID) {
		return engine.Errorf(engine.CodeValidation, "project id %q may not contain path separators", projectID)
	}
	return nil
}

// Path returns the database file for a project id.
func (m *Manager) Path(projectID string) string {
	return filepath.Join(m.dataDir, projectID+".db")
}

// Create initializes a new empty project. The data directory is
// created on demand; an existing database fails with ALREADY_EXISTS.
func (m *Manager) Create(ctx context.Context, projectID string) (*engine.Engine, error) {
	if err := ValidateID(projectID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.Path(projectID)
	if _, err := os.Stat(path); err == nil {
		return nil, engine.Errorf(engine.CodeAlreadyExists, "project %q already exists", projectID)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", m.dataDir)
	}

	eng, err := m.openLocked(projectID, path)
	if err != nil {
		return nil, err
	}
	m.log.Infow("project created", "project", projectID, "path", path)
	return eng, nil
}

// Open returns the engine for an existing project, reusing an already
// open store. A project with no database fails with NOT_FOUND.
func (m *Manager) Open(ctx context.Context, projectID string) (*engine.Engine, error) {
	if err := ValidateID(projectID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if eng, ok := m.open[projectID]; ok {
		return eng, nil
	}

	path := m.Path(projectID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, engine.Errorf(engine.CodeNotFound, "project %q does not exist", projectID)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	return m.openLocked(projectID, path)
}

// openLocked opens the store and caches its engine. Callers hold mu.
func (m *Manager) openLocked(projectID, path string) (*engine.Engine, error) {
	st, err := store.Open(path, m.log.Named("store").With("project", projectID))
	if err != nil {
		return nil, err
	}
	eng := engine.New(st, m.clock, m.log.With("project", projectID))
	m.open[projectID] = eng
	return eng, nil
}

// List names the projects present in the data directory, sorted by
// the directory's lexical read order. A missing data directory means
// no projects.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrapf(err, "read data dir %s", m.dataDir)
	}

	projects := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".db") {
			continue
		}
		projects = append(projects, strings.TrimSuffix(name, ".db"))
	}
	return projects, nil
}

// Close closes every open project store. The manager is not usable
// afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, eng := range m.open {
		if err := eng.Store().Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "close project %q", id)
		}
		delete(m.open, id)
	}
	return firstErr
}
