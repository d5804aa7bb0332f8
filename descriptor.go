package docbridge

// Status tracks a plugin through its lifecycle. Discovered entries move
// through Validating to Initialized, Invalid, or Failed. Invalid is terminal
// for the session; Failed may be retried. Disabled entries are skipped
// entirely until their configuration changes.
type Status string

const (
	StatusDiscovered  Status = "discovered"
	StatusValidating  Status = "validating"
	StatusInitialized Status = "initialized"
	StatusFailed      Status = "failed"
	StatusInvalid     Status = "invalid"
	StatusDisabled    Status = "disabled"
)

// Retryable reports whether a plugin in this status may be re-attempted
// without a code or config change.
func (s Status) Retryable() bool {
	return s == StatusFailed
}

// Descriptor is the identity and metadata of a discovered plugin, captured
// before initialization. Rebuilt on every discovery pass and on reload.
type Descriptor struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Roles   []Role   `json:"roles"`
	Deps    []string `json:"deps,omitempty"`
	Enabled bool     `json:"enabled"`
}

// Health is the per-plugin record returned by health queries. Safe to build
// for a plugin in any state.
type Health struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Enabled bool           `json:"enabled"`
	Status  Status         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Roles   []Role         `json:"roles,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// HealthSummary aggregates plugin state for the host's status endpoint. Pure
// read, no side effects.
type HealthSummary struct {
	Discovered  int               `json:"discovered"`
	Initialized int               `json:"initialized"`
	Failed      int               `json:"failed"`
	Invalid     int               `json:"invalid"`
	Disabled    int               `json:"disabled"`
	Details     []Health          `json:"details"`
	FailedSet   map[string]string `json:"failedPlugins,omitempty"`
}

// RetryResult reports the outcome of a RetryFailed pass.
type RetryResult struct {
	Attempted   int      `json:"attempted"`
	Succeeded   int      `json:"succeeded"`
	StillFailed []string `json:"stillFailed,omitempty"`
}
