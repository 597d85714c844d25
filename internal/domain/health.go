package domain

// HealthState is the coarse health of the plugin or one of its components.
type HealthState string

const (
	HealthHealthy HealthState = "HEALTHY"
	HealthWarning HealthState = "WARNING"
	HealthFailed  HealthState = "FAILED"
)

// HealthStatus pairs a state with an optional human readable comment.
type HealthStatus struct {
	State   HealthState `json:"state"`
	Comment string      `json:"comment,omitempty"`
}

// HealthMetric is a single named value reported alongside the health status.
type HealthMetric struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// HealthResult is the complete health picture, never a delta.
type HealthResult struct {
	Overall    HealthStatus            `json:"overall"`
	Components map[string]HealthStatus `json:"components,omitempty"`
	Metrics    []HealthMetric          `json:"metrics,omitempty"`
}
