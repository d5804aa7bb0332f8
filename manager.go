package docbridge

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/docbridge/docbridge/logging"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAppContext sets the application context handed to plugin Init calls.
func WithAppContext(app *AppContext) ManagerOption {
	return func(m *Manager) {
		m.app = app
	}
}

// NewManager returns a Manager with an empty registration table. Register
// factories, then call Discover and InitAll once at boot.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{reg: NewRegistry()}
	for _, opt := range opts {
		opt(m)
	}
	if m.app == nil {
		m.app = NewAppContext(context.Background())
	}
	m.app.Registry = m.reg
	m.app.Manager = m
	return m
}

// Manager drives the plugin lifecycle: discovery over the registration table,
// config validation, dependency-ordered initialization, health aggregation,
// and reload/retry. Lifecycle operations are serialized by a manager-level
// lock so a reload can't race a retry; registry reads are lock-free for
// callers on request paths.
type Manager struct {
	mu        sync.Mutex
	app       *AppContext
	factories []Factory
	reg       *Registry

	// order is the dependency order from the last Discover. Entries whose
	// dependencies turned out Invalid are still present; they short-circuit
	// to Failed at init time.
	order []string
}

// Register adds a plugin factory to the registration table. The factory is
// invoked at discovery time and again on each reload, so every load gets a
// fresh instance. Registration order is the tiebreak for initialization
// order between independent plugins.
func (m *Manager) Register(f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories = append(m.factories, f)
}

// Registry returns the live plugin table. Reads are safe at any time.
func (m *Manager) Registry() *Registry {
	return m.reg
}

// Get returns the named plugin if it is initialized, nil otherwise.
func (m *Manager) Get(name string) Plugin {
	return m.reg.Get(name)
}

// ByRole returns initialized plugins implementing the given role.
func (m *Manager) ByRole(role Role) []Plugin {
	return m.reg.ByRole(role)
}

// Discover builds a descriptor for every registered factory and validates
// each candidate without initializing it: roles and dependencies are read off
// the fresh instance, configuration is checked against the plugin's declared
// schema, and unknown dependencies and dependency cycles are rejected. A
// rejected plugin is marked Invalid with its reason; the rest proceed.
func (m *Manager) Discover() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reg = NewRegistry()
	m.app.Registry = m.reg
	log := m.logger()

	for _, f := range m.factories {
		p := f()
		name := p.Name()
		if prev := m.reg.entry(name); prev != nil {
			log.Warnw("duplicate plugin registration, replacing", "plugin", name)
		}

		e := &entry{
			factory: f,
			plugin:  p,
			status:  StatusDiscovered,
			config:  m.pluginConfig(name),
			desc: Descriptor{
				Name:    name,
				Version: p.Version(),
				Roles:   RolesOf(p),
				Enabled: m.pluginEnabled(name),
			},
		}
		if d, ok := p.(DependentPlugin); ok {
			e.desc.Deps = d.Deps()
		}
		m.reg.add(e)

		if !e.desc.Enabled {
			e.status = StatusDisabled
			log.Infow("plugin disabled by config", "plugin", name)
			continue
		}
		m.validate(e)
	}

	m.rejectUnknownDeps()
	m.order = m.resolveOrder()

	return m.reg.Descriptors()
}

// validate runs config schema validation and hands the plugin its config.
func (m *Manager) validate(e *entry) {
	e.status = StatusValidating
	name := e.desc.Name
	log := m.logger()

	cp, ok := e.plugin.(ConfigurablePlugin)
	if !ok {
		e.status = StatusDiscovered
		return
	}

	warnings, err := ValidateConfig(cp.ConfigSchema(), e.config)
	if err != nil {
		e.status = StatusInvalid
		e.lastErr = structuralf(name, "%v", err)
		log.Errorw("plugin config invalid", "plugin", name, "error", err)
		return
	}
	for _, key := range warnings {
		log.Warnw("unrecognized plugin config option", "plugin", name, "option", key)
	}

	if err := cp.Configure(e.config); err != nil {
		e.status = StatusInvalid
		e.lastErr = structuralf(name, "configure: %v", err)
		log.Errorw("plugin rejected config", "plugin", name, "error", err)
		return
	}
	e.status = StatusDiscovered
}

// rejectUnknownDeps marks plugins that name an unregistered dependency as
// Invalid. Their dependents are left alone; they fail at init time with a
// dependency-unavailable reason.
func (m *Manager) rejectUnknownDeps() {
	for _, e := range m.reg.snapshot() {
		if e.status != StatusDiscovered {
			continue
		}
		for _, dep := range e.desc.Deps {
			if m.reg.entry(dep) == nil {
				e.status = StatusInvalid
				e.lastErr = structuralf(e.desc.Name, "unknown dependency: %s", dep)
				break
			}
		}
	}
}

// resolveOrder runs Kahn's algorithm over the discovered plugins.
// Registration order breaks ties, so the result is deterministic. Plugins
// left over when the queue drains are on a dependency cycle and are marked
// Invalid; plugins that merely depend on an Invalid or Disabled plugin stay
// in the order and short-circuit at init.
func (m *Manager) resolveOrder() []string {
	entries := m.reg.snapshot()

	// Edges only between plugins that are both candidates; a dep that is
	// already Invalid or Disabled can never initialize, which initEntry
	// reports per-plugin.
	candidate := func(e *entry) bool { return e.status == StatusDiscovered }
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, e := range entries {
		if !candidate(e) {
			continue
		}
		indegree[e.desc.Name] += 0
		for _, dep := range e.desc.Deps {
			if de := m.reg.entry(dep); de != nil && candidate(de) {
				indegree[e.desc.Name]++
				dependents[dep] = append(dependents[dep], e.desc.Name)
			}
		}
	}

	var order []string
	resolved := map[string]bool{}
	for {
		advanced := false
		for _, e := range entries {
			name := e.desc.Name
			if !candidate(e) || resolved[name] || indegree[name] > 0 {
				continue
			}
			resolved[name] = true
			order = append(order, name)
			for _, dep := range dependents[name] {
				indegree[dep]--
			}
			advanced = true
		}
		if !advanced {
			break
		}
	}

	// Unresolved plugins are either on a cycle or downstream of one. Only the
	// cycle members are structurally Invalid; downstream plugins keep their
	// spot in the order and fail per-plugin at init with a dependency reason.
	unresolved := map[string]bool{}
	for _, e := range entries {
		if candidate(e) && !resolved[e.desc.Name] {
			unresolved[e.desc.Name] = true
		}
	}
	for _, e := range entries {
		name := e.desc.Name
		if unresolved[name] && m.onCycle(name, unresolved) {
			e.status = StatusInvalid
			e.lastErr = structuralf(name, "dependency cycle involving %q", name)
			m.logger().Errorw("dependency cycle detected", "plugin", name)
		}
	}

	// Plugins with an Invalid or Disabled dependency never made it into the
	// graph above; append them so init can record a per-plugin failure.
	for _, e := range entries {
		if e.status == StatusDiscovered && !resolved[e.desc.Name] {
			order = append(order, e.desc.Name)
		}
	}
	return order
}

// onCycle reports whether a plugin can reach itself through dependency
// edges, restricted to the given unresolved set.
func (m *Manager) onCycle(name string, unresolved map[string]bool) bool {
	seen := map[string]bool{}
	var walk func(cur string) bool
	walk = func(cur string) bool {
		e := m.reg.entry(cur)
		if e == nil {
			return false
		}
		for _, dep := range e.desc.Deps {
			if dep == name {
				return true
			}
			if !unresolved[dep] || seen[dep] {
				continue
			}
			seen[dep] = true
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(name)
}

// InitAll initializes every discovered plugin in dependency order. One
// plugin's failure is recorded and the batch continues; a plugin whose
// dependency did not initialize is failed without its Init being called.
// Returns the registry for lookup by the host.
func (m *Manager) InitAll(ctx context.Context) *Registry {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		if e := m.reg.entry(name); e != nil {
			m.initEntry(ctx, e)
		}
	}
	return m.reg
}

func (m *Manager) initEntry(ctx context.Context, e *entry) {
	if e.status != StatusDiscovered && e.status != StatusFailed {
		return
	}
	name := e.desc.Name
	log := m.logger()

	for _, dep := range e.desc.Deps {
		ds, ok := m.reg.Status(dep)
		if !ok || ds != StatusInitialized {
			e.status = StatusFailed
			e.lastErr = fmt.Errorf("dependency unavailable: %s", dep)
			log.Errorw("plugin skipped", "plugin", name, "error", e.lastErr)
			return
		}
	}

	pctx := logging.With(ctx, log.Named("plugin."+name))
	if err := safeInit(pctx, e.plugin, m.app); err != nil {
		e.status = StatusFailed
		e.lastErr = &InitError{Plugin: name, Err: err}
		log.Errorw("plugin init failed", "plugin", name, "error", err)
		return
	}

	e.status = StatusInitialized
	e.lastErr = nil
	log.Infow("plugin initialized", "plugin", name, "version", e.desc.Version)
}

// safeInit converts a plugin panic during Init into an error so a broken
// plugin cannot abort the batch.
func safeInit(ctx context.Context, p Plugin, app *AppContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during init: %v", r)
		}
	}()
	return p.Init(ctx, app)
}

func safeCleanup(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during cleanup: %v", r)
		}
	}()
	return p.Cleanup(ctx)
}

// HealthSummary aggregates per-plugin state: counts, details, and the failed
// set with human-readable reasons. Pure read over the registry.
func (m *Manager) HealthSummary() HealthSummary {
	s := HealthSummary{FailedSet: map[string]string{}}
	for _, e := range m.reg.snapshot() {
		h := e.health()
		s.Details = append(s.Details, h)
		s.Discovered++
		switch e.status {
		case StatusInitialized:
			s.Initialized++
		case StatusFailed:
			s.Failed++
			s.FailedSet[h.Name] = h.Error
		case StatusInvalid:
			s.Invalid++
			s.FailedSet[h.Name] = h.Error
		case StatusDisabled:
			s.Disabled++
		}
	}
	return s
}

// Reload tears down a single plugin and loads it again from its factory with
// freshly read configuration. All other plugins are untouched. Returns an
// error if the plugin is unknown or did not come back Initialized.
func (m *Manager) Reload(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.reg.entry(name)
	if old == nil {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	log := m.logger()

	// Failed instances get cleanup too; a failed Init may have left
	// partial resources behind.
	if old.status == StatusInitialized || old.status == StatusFailed {
		if err := safeCleanup(ctx, old.plugin); err != nil {
			log.Warnw("cleanup error during reload", "plugin", name, "error", err)
		}
	}

	p := old.factory()
	e := &entry{
		factory: old.factory,
		plugin:  p,
		status:  StatusDiscovered,
		config:  m.pluginConfig(name),
		desc: Descriptor{
			Name:    name,
			Version: p.Version(),
			Roles:   RolesOf(p),
			Enabled: m.pluginEnabled(name),
		},
	}
	if d, ok := p.(DependentPlugin); ok {
		e.desc.Deps = d.Deps()
	}
	m.reg.add(e)

	// A plugin that was disabled or invalid at discovery never made it into
	// the init order. Once reloaded it must be visible to RetryFailed and
	// Shutdown, so ensure it has a slot.
	if !slices.Contains(m.order, name) {
		m.order = append(m.order, name)
	}

	if !e.desc.Enabled {
		e.status = StatusDisabled
		return nil
	}

	m.validate(e)
	if e.status == StatusInvalid {
		return e.lastErr
	}

	m.initEntry(ctx, e)
	if e.status != StatusInitialized {
		return e.lastErr
	}
	log.Infow("plugin reloaded", "plugin", name)
	return nil
}

// RetryFailed re-attempts initialization for every plugin currently Failed,
// in the original dependency order. Successes are promoted to Initialized;
// repeat failures update lastError. A registry with no failed plugins is a
// no-op.
func (m *Manager) RetryFailed(ctx context.Context) RetryResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res RetryResult
	for _, name := range m.order {
		e := m.reg.entry(name)
		if e == nil || e.status != StatusFailed {
			continue
		}
		res.Attempted++
		m.initEntry(ctx, e)
		if e.status == StatusInitialized {
			res.Succeeded++
		} else {
			res.StillFailed = append(res.StillFailed, name)
		}
	}
	return res
}

// Shutdown cleans up initialized plugins in reverse dependency order.
// Cleanup errors are logged, not returned.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.order) - 1; i >= 0; i-- {
		e := m.reg.entry(m.order[i])
		if e == nil || e.status != StatusInitialized {
			continue
		}
		if err := safeCleanup(ctx, e.plugin); err != nil {
			m.logger().Warnw("plugin cleanup failed", "plugin", e.desc.Name, "error", err)
		}
		e.status = StatusDiscovered
	}
}

func (m *Manager) logger() logging.Logger {
	if m.app != nil && m.app.Logger != nil {
		return m.app.Logger
	}
	return logging.NewDevLogger()
}

// pluginConfig reads the plugins.<name> subtree from the application config.
// The enabled flag is lifecycle metadata, not a plugin option, and is
// stripped before schema validation.
func (m *Manager) pluginConfig(name string) map[string]any {
	raw := m.app.Config.Get("plugins." + name)
	block, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	cfg := make(map[string]any, len(block))
	for k, v := range block {
		if k == "enabled" {
			continue
		}
		cfg[k] = v
	}
	return cfg
}

// pluginEnabled defaults to true; plugins opt out via config.
func (m *Manager) pluginEnabled(name string) bool {
	key := "plugins." + name + ".enabled"
	if !m.app.Config.Exists(key) {
		return true
	}
	return m.app.Config.Bool(key)
}
