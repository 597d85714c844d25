package app

import (
	"sync"

	"github.com/charmbracelet/log"

	"sqlplugin/internal/domain"
	"sqlplugin/internal/secret"
)

// HostContainer is the standalone host: it resolves secrets and logs health changes.
type HostContainer struct {
	resolver *secret.Resolver
	logger   *log.Logger

	mu     sync.Mutex
	health map[string]domain.HealthResult
}

// NewHostContainer creates a host resolving secrets through resolver.
func NewHostContainer(resolver *secret.Resolver, logger *log.Logger) *HostContainer {
	return &HostContainer{
		resolver: resolver,
		logger:   logger.With("component", "host"),
		health:   make(map[string]domain.HealthResult),
	}
}

func (h *HostContainer) Decrypt(value string) (string, error) {
	return h.resolver.Resolve(value)
}

func (h *HostContainer) SetPluginHealth(pluginID string, health domain.HealthResult) {
	h.mu.Lock()
	prev, seen := h.health[pluginID]
	h.health[pluginID] = health
	h.mu.Unlock()

	if seen && prev.Overall == health.Overall {
		return
	}
	logger := h.logger.With("plugin", pluginID, "state", health.Overall.State)
	switch health.Overall.State {
	case domain.HealthFailed:
		logger.Error("Plugin health changed", "comment", health.Overall.Comment)
	case domain.HealthWarning:
		logger.Warn("Plugin health changed", "comment", health.Overall.Comment)
	default:
		logger.Info("Plugin health changed")
	}
}

// Health returns the last health picture pushed by pluginID.
func (h *HostContainer) Health(pluginID string) (domain.HealthResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.health[pluginID]
	return r, ok
}
