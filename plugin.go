package docbridge

import (
	"context"
)

// The base plugin interface. Every plugin must at minimum identify itself and
// participate in the lifecycle; everything else is opt-in via the capability
// interfaces below.
type Plugin interface {
	// Name of the plugin, used for querying and dependency resolution.
	Name() string

	// Version of the plugin, semver-like.
	Version() string

	// Init prepares the plugin for use. Called once, in dependency order. An
	// error marks the plugin as Failed but never aborts the batch.
	Init(ctx context.Context, app *AppContext) error

	// Cleanup releases any resources held by the plugin. Callable even if Init
	// failed or was never reached.
	Cleanup(ctx context.Context) error
}

// Implemented if a plugin depends on other plugins. Dependencies are
// initialized before the plugin; an unavailable dependency fails the plugin
// without Init being attempted.
type DependentPlugin interface {
	// Deps returns the names of plugins which this plugin depends on.
	Deps() []string
}

// Implemented if a plugin accepts configuration. The schema is validated
// before Init; a plugin whose config fails validation is marked Invalid and
// never initialized.
type ConfigurablePlugin interface {
	// ConfigSchema returns a JSON Schema document describing the plugin's
	// recognized options, types, defaults, and required flags.
	ConfigSchema() string

	// Configure hands the plugin its validated configuration. Called before
	// Init on every load and reload.
	Configure(config map[string]any) error
}

// Implemented by plugins that process documents.
type ProcessingPlugin interface {
	Plugin

	// ProcessDocument runs the plugin's processing step over a document on
	// disk. Failures are reported in the result or error, never by panic, and
	// do not affect the plugin's lifecycle status.
	ProcessDocument(ctx context.Context, path string, meta Metadata) (*ProcessResult, error)

	// SupportedFormats returns the file extensions this plugin can process,
	// lowercase without the leading dot.
	SupportedFormats() []string
}

// Implemented by plugins that talk to an external system.
type IntegrationPlugin interface {
	Plugin

	// TestConnection verifies the external service is reachable with the
	// configured credentials.
	TestConnection(ctx context.Context) error

	// SyncData pushes or pulls data to the external service.
	SyncData(ctx context.Context, payload SyncPayload) (*SyncResult, error)
}

// Implemented by plugins that contribute pages to the web interface.
type WebPlugin interface {
	Plugin

	// Routes returns handlers to mount under /plugins/<name>.
	Routes() []Route

	// MenuItems returns entries for the navigation menu.
	MenuItems() []MenuItem
}

// Implemented by plugins that contribute JSON API endpoints.
type APIPlugin interface {
	Plugin

	// APIRoutes returns handlers to mount under /api/plugins/<name>.
	APIRoutes() []Route

	// APIDocs returns a human-readable description of the plugin's endpoints.
	APIDocs() map[string]any
}

// Implemented if a plugin can report richer health detail than the manager
// tracks on its own. Implementations must not panic.
type HealthReporter interface {
	// Health returns plugin-specific health fields, merged into the manager's
	// per-plugin health record.
	Health() map[string]any
}

// Factory constructs a fresh plugin instance. Registered with the Manager and
// invoked at discovery time and again on reload, so instances are never
// reused across loads.
type Factory func() Plugin

// Role tags a capability a plugin exposes.
type Role string

const (
	RoleProcessing  Role = "processing"
	RoleIntegration Role = "integration"
	RoleWeb         Role = "web"
	RoleAPI         Role = "api"
)

// RolesOf reports the capability roles a plugin implements. Capability checks
// are interface assertions, so a plugin may carry any combination of roles.
func RolesOf(p Plugin) []Role {
	var roles []Role
	if _, ok := p.(ProcessingPlugin); ok {
		roles = append(roles, RoleProcessing)
	}
	if _, ok := p.(IntegrationPlugin); ok {
		roles = append(roles, RoleIntegration)
	}
	if _, ok := p.(WebPlugin); ok {
		roles = append(roles, RoleWeb)
	}
	if _, ok := p.(APIPlugin); ok {
		roles = append(roles, RoleAPI)
	}
	return roles
}

// HasRole reports whether a plugin implements the given role.
func HasRole(p Plugin, role Role) bool {
	switch role {
	case RoleProcessing:
		_, ok := p.(ProcessingPlugin)
		return ok
	case RoleIntegration:
		_, ok := p.(IntegrationPlugin)
		return ok
	case RoleWeb:
		_, ok := p.(WebPlugin)
		return ok
	case RoleAPI:
		_, ok := p.(APIPlugin)
		return ok
	}
	return false
}
