package service

import (
	"sync"

	"sqlplugin/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// MockContainer: stands in for the host runtime in tests
// ─────────────────────────────────────────────────────────────

// MockContainer is a test-friendly domain.Container that records every health push.
// Decrypt returns the mapped value from Secrets, or the input unchanged.
type MockContainer struct {
	Secrets    map[string]string
	DecryptErr error

	mu     sync.Mutex
	pushes []HealthPush
}

// HealthPush holds a single recorded push for test assertions.
type HealthPush struct {
	PluginID string
	Health   domain.HealthResult
}

func (m *MockContainer) Decrypt(secret string) (string, error) {
	if m.DecryptErr != nil {
		return "", m.DecryptErr
	}
	if v, ok := m.Secrets[secret]; ok {
		return v, nil
	}
	return secret, nil
}

func (m *MockContainer) SetPluginHealth(pluginID string, health domain.HealthResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, HealthPush{PluginID: pluginID, Health: health})
}

// Pushes returns a copy of every recorded push.
func (m *MockContainer) Pushes() []HealthPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HealthPush(nil), m.pushes...)
}

// Last returns the most recent push, or the zero value.
func (m *MockContainer) Last() domain.HealthResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pushes) == 0 {
		return domain.HealthResult{}
	}
	return m.pushes[len(m.pushes)-1].Health
}
