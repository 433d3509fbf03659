//go:build integration

// Package containers starts the shared infrastructure for integration tests.
// One Postgres container serves every suite in a test run; suites isolate
// themselves by truncating their tables in SetupTest.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out shared containers. Starting one Postgres per suite is
// slow enough to dominate the test run, so suites share a single instance.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
}

var manager = &Manager{}

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	return manager
}

// GetPostgres returns the shared Postgres container, starting it on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}
