// Package docbridge is a plugin-based middleware that bridges document
// management systems with accounting platforms. The root package contains the
// plugin core: capability contracts, the registry of loaded plugins, and the
// manager that drives discovery, validation, dependency-ordered
// initialization, health reporting, and reload.
//
// Concrete plugins live under plugins/ and the host binary under
// cmd/docbridged. A minimal host looks like:
//
//	m := docbridge.NewManager(docbridge.WithAppContext(app))
//	m.Register(func() docbridge.Plugin { return ocr.New() })
//	m.Register(func() docbridge.Plugin { return paperless.New() })
//	m.Discover()
//	reg := m.InitAll(ctx)
//
// One plugin's failure never prevents the others from loading; the manager
// records per-plugin status and exposes it through HealthSummary.
package docbridge

import (
	"context"

	"github.com/docbridge/docbridge/logging"
	"github.com/knadh/koanf/v2"
)

// AppContext carries the shared resources handed to every plugin's Init call.
// Plugins should treat it as read-only.
type AppContext struct {
	// Config is the resolved application configuration. Per-plugin options are
	// delivered separately through ConfigurablePlugin.Configure.
	Config *koanf.Koanf

	// Logger is the root logger. The manager hands each plugin a child logger
	// named "plugin.<name>" via the context passed to Init.
	Logger logging.Logger

	// DataDir is the directory for plugin-local persistent state.
	DataDir string

	// UploadDir is where inbound documents are staged for processing.
	UploadDir string

	// Registry gives initialized plugins access to their dependencies. Only
	// valid during and after Init; lookups of plugins later in the dependency
	// order return nil.
	Registry *Registry

	// Manager owns the lifecycle. Set when the AppContext is handed to a
	// Manager; plugins that surface lifecycle state (the web dashboard) read
	// health through it.
	Manager *Manager
}

// NewAppContext returns an AppContext bound to the global configuration.
func NewAppContext(ctx context.Context) *AppContext {
	ctx = logging.EnsureLogger(ctx)
	return &AppContext{
		Config:    Config,
		Logger:    logging.FromContext(ctx).Named("docbridge"),
		DataDir:   Config.String("storage.dataDir"),
		UploadDir: Config.String("storage.uploadDir"),
	}
}
