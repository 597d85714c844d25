package service

import (
	"sort"
	"sync"

	"sqlplugin/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Health tracker: mutex-guarded health picture pushed to the host
// ─────────────────────────────────────────────────────────────

// healthState is the mutable picture behind healthTracker. Only touched under its lock.
type healthState struct {
	overall    domain.HealthStatus
	components map[string]domain.HealthStatus
	metrics    map[string]any
}

func (s *healthState) setComponent(name string, state domain.HealthState, comment string) {
	s.components[name] = domain.HealthStatus{State: state, Comment: comment}
}

// worst returns the most severe component state, or HEALTHY with no components.
func (s *healthState) worst() domain.HealthStatus {
	out := domain.HealthStatus{State: domain.HealthHealthy}
	for _, name := range sortedKeys(s.components) {
		c := s.components[name]
		if severity(c.State) > severity(out.State) {
			out = domain.HealthStatus{State: c.State, Comment: name + ": " + c.Comment}
		}
	}
	return out
}

func (s *healthState) snapshot() domain.HealthResult {
	res := domain.HealthResult{
		Overall:    s.overall,
		Components: make(map[string]domain.HealthStatus, len(s.components)),
	}
	for k, v := range s.components {
		res.Components[k] = v
	}
	for _, name := range sortedKeys(s.metrics) {
		res.Metrics = append(res.Metrics, domain.HealthMetric{Name: name, Value: s.metrics[name]})
	}
	return res
}

func severity(s domain.HealthState) int {
	switch s {
	case domain.HealthFailed:
		return 2
	case domain.HealthWarning:
		return 1
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// healthTracker owns the health picture and pushes the complete picture to the
// publisher on every change. Pushes are serialized so the host sees them in order.
type healthTracker struct {
	pubMu   sync.Mutex
	mu      sync.Mutex
	state   healthState
	publish func(domain.HealthResult)
}

func newHealthTracker() *healthTracker {
	return &healthTracker{state: healthState{
		overall:    domain.HealthStatus{State: domain.HealthWarning, Comment: "Platform initialising"},
		components: make(map[string]domain.HealthStatus),
		metrics:    make(map[string]any),
	}}
}

// setPublisher installs the push target. The current picture is pushed immediately.
func (h *healthTracker) setPublisher(publish func(domain.HealthResult)) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	h.mu.Lock()
	h.publish = publish
	snap := h.state.snapshot()
	h.mu.Unlock()
	if publish != nil {
		publish(snap)
	}
}

// update applies fn and, when it reports a change, pushes the new picture.
func (h *healthTracker) update(fn func(s *healthState) bool) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	h.mu.Lock()
	changed := fn(&h.state)
	snap := h.state.snapshot()
	publish := h.publish
	h.mu.Unlock()
	if changed && publish != nil {
		publish(snap)
	}
}

// setMetric stores a value. Only a newly created metric triggers a push; value
// changes are carried by the next push.
func (h *healthTracker) setMetric(name string, value any) {
	h.update(func(s *healthState) bool {
		_, existed := s.metrics[name]
		s.metrics[name] = value
		return !existed
	})
}

func (h *healthTracker) incMetric(name string) {
	h.update(func(s *healthState) bool {
		cur, existed := s.metrics[name].(int64)
		s.metrics[name] = cur + 1
		return !existed
	})
}

func (h *healthTracker) snapshot() domain.HealthResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.snapshot()
}
