package docbridge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchedPlugin struct {
	testPlugin
	configs chan map[string]any
}

func (wp *watchedPlugin) ConfigSchema() string {
	return `{"type": "object", "properties": {"setting": {"type": "string"}}}`
}

func (wp *watchedPlugin) Configure(config map[string]any) error {
	wp.configs <- config
	return nil
}

func TestWatchConfigReloadsChangedPlugin(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugins:\n  watched:\n    setting: before\n"), 0o644))

	m := newTestManager(t, nil)
	require.NoError(t, m.app.Config.Load(file.Provider(path), yaml.Parser()))

	configs := make(chan map[string]any, 4)
	register(m, &watchedPlugin{testPlugin: testPlugin{name: "watched"}, configs: configs})
	m.Discover()
	m.InitAll(ctx)
	assert.Equal(t, map[string]any{"setting": "before"}, <-configs)

	cw, err := WatchConfig(ctx, m, path)
	require.NoError(t, err)
	defer cw.Close()

	require.NoError(t, os.WriteFile(path, []byte("plugins:\n  watched:\n    setting: after\n"), 0o644))

	select {
	case got := <-configs:
		assert.Equal(t, map[string]any{"setting": "after"}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("plugin was not reconfigured after config change")
	}
}

func TestWatchConfigIgnoresUnchangedPlugins(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugins:\n  watched:\n    setting: same\n"), 0o644))

	m := newTestManager(t, nil)
	require.NoError(t, m.app.Config.Load(file.Provider(path), yaml.Parser()))

	configs := make(chan map[string]any, 4)
	register(m, &watchedPlugin{testPlugin: testPlugin{name: "watched"}, configs: configs})
	m.Discover()
	m.InitAll(ctx)
	<-configs

	cw, err := WatchConfig(ctx, m, path)
	require.NoError(t, err)
	defer cw.Close()

	// Touch the file without changing the plugin's subtree.
	require.NoError(t, os.WriteFile(path, []byte("plugins:\n  watched:\n    setting: same\n"), 0o644))

	select {
	case <-configs:
		t.Fatal("plugin was reloaded although its config did not change")
	case <-time.After(time.Second):
	}
}
