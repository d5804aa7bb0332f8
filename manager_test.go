package docbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/docbridge/docbridge/logging"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPlugin struct {
	name    string
	deps    []string
	initErr error
	panics  bool

	inits    int
	cleanups int
	order    *[]string
}

func (tp *testPlugin) Name() string    { return tp.name }
func (tp *testPlugin) Version() string { return "1.0.0" }

func (tp *testPlugin) Init(ctx context.Context, app *AppContext) error {
	tp.inits++
	if tp.order != nil {
		*tp.order = append(*tp.order, tp.name)
	}
	if tp.panics {
		panic("boom")
	}
	return tp.initErr
}

func (tp *testPlugin) Cleanup(ctx context.Context) error {
	tp.cleanups++
	return nil
}

func (tp *testPlugin) Deps() []string { return tp.deps }

type configurableTestPlugin struct {
	testPlugin
	schema string
	got    map[string]any
}

func (tp *configurableTestPlugin) ConfigSchema() string { return tp.schema }

func (tp *configurableTestPlugin) Configure(config map[string]any) error {
	tp.got = config
	return nil
}

func newTestManager(t *testing.T, conf map[string]any) *Manager {
	t.Helper()
	k := koanf.New(".")
	if conf != nil {
		require.NoError(t, k.Load(confmap.Provider(conf, "."), nil))
	}
	return NewManager(WithAppContext(&AppContext{
		Config: k,
		Logger: logging.NewDevLogger(),
	}))
}

func register(m *Manager, plugins ...Plugin) {
	for _, p := range plugins {
		p := p
		m.Register(func() Plugin { return p })
	}
}

func TestInitOrderRespectsDeps(t *testing.T) {
	ctx := t.Context()
	var order []string

	m := newTestManager(t, nil)
	register(m,
		&testPlugin{name: "a", deps: []string{"b", "c"}, order: &order},
		&testPlugin{name: "b", deps: []string{"c", "d"}, order: &order},
		&testPlugin{name: "c", deps: []string{"d"}, order: &order},
		&testPlugin{name: "d", order: &order},
	)

	m.Discover()
	reg := m.InitAll(ctx)

	assert.Equal(t, []string{"d", "c", "b", "a"}, order)
	for _, name := range []string{"a", "b", "c", "d"} {
		status, ok := reg.Status(name)
		require.True(t, ok)
		assert.Equal(t, StatusInitialized, status, name)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	ctx := t.Context()

	bad := &testPlugin{name: "bad", initErr: errors.New("no connection")}
	m := newTestManager(t, nil)
	register(m,
		&testPlugin{name: "ocr"},
		bad,
		&testPlugin{name: "web"},
	)

	m.Discover()
	reg := m.InitAll(ctx)

	s := m.HealthSummary()
	assert.Equal(t, 3, s.Discovered)
	assert.Equal(t, 2, s.Initialized)
	assert.Equal(t, 1, s.Failed)
	assert.Contains(t, s.FailedSet["bad"], "no connection")

	assert.NotNil(t, reg.Get("ocr"))
	assert.NotNil(t, reg.Get("web"))
	assert.Nil(t, reg.Get("bad"), "failed plugins must not be dispatchable")
}

func TestInitPanicIsIsolated(t *testing.T) {
	ctx := t.Context()

	m := newTestManager(t, nil)
	register(m,
		&testPlugin{name: "stable"},
		&testPlugin{name: "crashy", panics: true},
	)

	m.Discover()
	reg := m.InitAll(ctx)

	status, _ := reg.Status("crashy")
	assert.Equal(t, StatusFailed, status)
	assert.NotNil(t, reg.Get("stable"))
}

func TestFailedDependencyShortCircuits(t *testing.T) {
	ctx := t.Context()

	dependent := &testPlugin{name: "sync", deps: []string{"store"}}
	m := newTestManager(t, nil)
	register(m,
		&testPlugin{name: "store", initErr: errors.New("disk full")},
		dependent,
	)

	m.Discover()
	reg := m.InitAll(ctx)

	status, _ := reg.Status("sync")
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, 0, dependent.inits, "dependent must never receive Init")

	s := m.HealthSummary()
	assert.Contains(t, s.FailedSet["sync"], "dependency unavailable: store")
}

func TestUnknownDependencyIsInvalid(t *testing.T) {
	ctx := t.Context()
	var order []string

	m := newTestManager(t, nil)
	register(m,
		&testPlugin{name: "a", order: &order},
		&testPlugin{name: "b", deps: []string{"a"}, order: &order},
		&testPlugin{name: "c", deps: []string{"z"}, order: &order},
	)

	m.Discover()
	reg := m.InitAll(ctx)

	status, _ := reg.Status("c")
	assert.Equal(t, StatusInvalid, status)
	s := m.HealthSummary()
	assert.Contains(t, s.FailedSet["c"], "unknown dependency: z")

	// a and b are unaffected.
	assert.Equal(t, []string{"a", "b"}, order)
	assert.NotNil(t, reg.Get("a"))
	assert.NotNil(t, reg.Get("b"))
}

func TestCycleInvalidatesOnlyInvolvedPlugins(t *testing.T) {
	ctx := t.Context()

	m := newTestManager(t, nil)
	register(m,
		&testPlugin{name: "a", deps: []string{"b"}},
		&testPlugin{name: "b", deps: []string{"a"}},
		&testPlugin{name: "standalone"},
	)

	m.Discover()
	reg := m.InitAll(ctx)

	for _, name := range []string{"a", "b"} {
		status, _ := reg.Status(name)
		assert.Equal(t, StatusInvalid, status, name)
	}
	assert.NotNil(t, reg.Get("standalone"))
}

func TestDependentOfCycleFailsWithReason(t *testing.T) {
	ctx := t.Context()

	downstream := &testPlugin{name: "down", deps: []string{"a"}}
	m := newTestManager(t, nil)
	register(m,
		&testPlugin{name: "a", deps: []string{"b"}},
		&testPlugin{name: "b", deps: []string{"a"}},
		downstream,
	)

	m.Discover()
	reg := m.InitAll(ctx)

	status, _ := reg.Status("down")
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, 0, downstream.inits)
}

func TestSchemaRequiredFieldIsInvalid(t *testing.T) {
	ctx := t.Context()

	p := &configurableTestPlugin{
		testPlugin: testPlugin{name: "x"},
		schema: `{
			"type": "object",
			"properties": {"api_key": {"type": "string"}},
			"required": ["api_key"]
		}`,
	}
	m := newTestManager(t, nil)
	register(m, p)

	m.Discover()
	reg := m.InitAll(ctx)

	status, _ := reg.Status("x")
	assert.Equal(t, StatusInvalid, status)
	assert.Equal(t, 0, p.inits, "invalid plugins never reach Init")

	s := m.HealthSummary()
	assert.Contains(t, s.FailedSet["x"], "missing required field: api_key")
}

func TestConfigureReceivesConfigWithoutEnabledFlag(t *testing.T) {
	p := &configurableTestPlugin{
		testPlugin: testPlugin{name: "x"},
		schema:     `{"type": "object", "properties": {"apiKey": {"type": "string"}}}`,
	}
	m := newTestManager(t, map[string]any{
		"plugins": map[string]any{
			"x": map[string]any{"enabled": true, "apiKey": "secret"},
		},
	})
	register(m, p)

	m.Discover()

	assert.Equal(t, map[string]any{"apiKey": "secret"}, p.got)
}

func TestDisabledPluginSkipped(t *testing.T) {
	ctx := t.Context()

	p := &testPlugin{name: "off"}
	m := newTestManager(t, map[string]any{
		"plugins": map[string]any{"off": map[string]any{"enabled": false}},
	})
	register(m, p)

	m.Discover()
	reg := m.InitAll(ctx)

	status, _ := reg.Status("off")
	assert.Equal(t, StatusDisabled, status)
	assert.Equal(t, 0, p.inits)
}

func TestReloadLeavesOthersUntouched(t *testing.T) {
	ctx := t.Context()

	healthy := &testPlugin{name: "healthy"}
	broken := &testPlugin{name: "broken", initErr: errors.New("bad creds")}
	m := newTestManager(t, nil)
	register(m, healthy, broken)

	m.Discover()
	m.InitAll(ctx)

	require.NoError(t, m.Reload(ctx, "healthy"))

	status, _ := m.reg.Status("broken")
	assert.Equal(t, StatusFailed, status)
	s := m.HealthSummary()
	assert.Contains(t, s.FailedSet["broken"], "bad creds")

	// The reloaded plugin got a cleanup and a second init.
	assert.Equal(t, 1, healthy.cleanups)
	assert.Equal(t, 2, healthy.inits)
}

func TestReloadUnknownPlugin(t *testing.T) {
	m := newTestManager(t, nil)
	m.Discover()

	err := m.Reload(t.Context(), "ghost")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestReloadEnabledPluginJoinsRetry(t *testing.T) {
	ctx := t.Context()

	lazy := &testPlugin{name: "lazy", initErr: errors.New("backend offline")}
	m := newTestManager(t, map[string]any{
		"plugins": map[string]any{"lazy": map[string]any{"enabled": false}},
	})
	register(m, lazy)

	m.Discover()
	m.InitAll(ctx)
	status, _ := m.reg.Status("lazy")
	require.Equal(t, StatusDisabled, status)

	require.NoError(t, m.app.Config.Set("plugins.lazy.enabled", true))
	require.Error(t, m.Reload(ctx, "lazy"))
	status, _ = m.reg.Status("lazy")
	require.Equal(t, StatusFailed, status)

	lazy.initErr = nil
	res := m.RetryFailed(ctx)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Succeeded)
	status, _ = m.reg.Status("lazy")
	assert.Equal(t, StatusInitialized, status)
}

func TestReloadEnabledPluginJoinsShutdown(t *testing.T) {
	ctx := t.Context()

	lazy := &testPlugin{name: "lazy"}
	m := newTestManager(t, map[string]any{
		"plugins": map[string]any{"lazy": map[string]any{"enabled": false}},
	})
	register(m, lazy)

	m.Discover()
	m.InitAll(ctx)

	require.NoError(t, m.app.Config.Set("plugins.lazy.enabled", true))
	require.NoError(t, m.Reload(ctx, "lazy"))

	m.Shutdown(ctx)
	assert.Equal(t, 1, lazy.cleanups)
}

func TestReloadCleansUpFailedInstance(t *testing.T) {
	ctx := t.Context()

	flaky := &testPlugin{name: "flaky", initErr: errors.New("backend offline")}
	m := newTestManager(t, nil)
	register(m, flaky)

	m.Discover()
	m.InitAll(ctx)
	status, _ := m.reg.Status("flaky")
	require.Equal(t, StatusFailed, status)

	flaky.initErr = nil
	require.NoError(t, m.Reload(ctx, "flaky"))
	assert.Equal(t, 1, flaky.cleanups, "failed instance is cleaned up before its replacement loads")
}

func TestRetryFailedNoopOnHealthyRegistry(t *testing.T) {
	ctx := t.Context()

	m := newTestManager(t, nil)
	register(m, &testPlugin{name: "a"}, &testPlugin{name: "b"})

	m.Discover()
	m.InitAll(ctx)

	res := m.RetryFailed(ctx)
	assert.Equal(t, RetryResult{}, res)
}

func TestRetryFailedPromotesRecoveredPlugins(t *testing.T) {
	ctx := t.Context()

	flaky := &testPlugin{name: "flaky", initErr: errors.New("not yet")}
	stuck := &testPlugin{name: "stuck", initErr: errors.New("always down")}
	m := newTestManager(t, nil)
	register(m, flaky, stuck)

	m.Discover()
	m.InitAll(ctx)

	// The flaky service comes back.
	flaky.initErr = nil

	res := m.RetryFailed(ctx)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"stuck"}, res.StillFailed)

	status, _ := m.reg.Status("flaky")
	assert.Equal(t, StatusInitialized, status)
	s := m.HealthSummary()
	assert.Contains(t, s.FailedSet["stuck"], "always down")
}

func TestRetryFailedUnblocksDependents(t *testing.T) {
	ctx := t.Context()

	dep := &testPlugin{name: "store", initErr: errors.New("warming up")}
	child := &testPlugin{name: "sync", deps: []string{"store"}}
	m := newTestManager(t, nil)
	register(m, dep, child)

	m.Discover()
	m.InitAll(ctx)

	dep.initErr = nil
	res := m.RetryFailed(ctx)

	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 2, res.Succeeded)
	assert.Empty(t, res.StillFailed)
}

func TestShutdownCleansUpInitialized(t *testing.T) {
	ctx := t.Context()

	a := &testPlugin{name: "a"}
	bad := &testPlugin{name: "bad", initErr: errors.New("nope")}
	m := newTestManager(t, nil)
	register(m, a, bad)

	m.Discover()
	m.InitAll(ctx)
	m.Shutdown(ctx)

	assert.Equal(t, 1, a.cleanups)
	assert.Equal(t, 0, bad.cleanups, "failed plugins are not cleaned up")
}

func TestHealthSummaryCounts(t *testing.T) {
	ctx := t.Context()

	m := newTestManager(t, map[string]any{
		"plugins": map[string]any{"off": map[string]any{"enabled": false}},
	})
	register(m,
		&testPlugin{name: "ok"},
		&testPlugin{name: "bad", initErr: errors.New("x")},
		&testPlugin{name: "orphan", deps: []string{"nowhere"}},
		&testPlugin{name: "off"},
	)

	m.Discover()
	m.InitAll(ctx)

	s := m.HealthSummary()
	assert.Equal(t, 4, s.Discovered)
	assert.Equal(t, 1, s.Initialized)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, 1, s.Disabled)
	assert.Len(t, s.Details, 4)
}
