package docbridge

import (
	"context"
	"reflect"
	"time"

	"github.com/docbridge/docbridge/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
)

// debounce window for editors that emit several write events per save.
const watchSettle = 250 * time.Millisecond

// ConfigWatcher watches the plugin config file and reloads plugins whose
// configuration changed. Plugins whose subtree is untouched are left alone.
type ConfigWatcher struct {
	manager *Manager
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchConfig starts watching path for changes. On each change the file is
// reloaded into the global Config and every plugin whose plugins.<name>
// subtree differs from its last-applied config is reloaded. Stop with Close.
func WatchConfig(ctx context.Context, m *Manager, path string) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	cw := &ConfigWatcher{manager: m, path: path, watcher: w, done: make(chan struct{})}
	go cw.run(ctx)
	return cw, nil
}

// Close stops the watcher.
func (cw *ConfigWatcher) Close() error {
	close(cw.done)
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) run(ctx context.Context) {
	ctx = logging.EnsureLogger(ctx)
	log := logging.FromContext(ctx)
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchSettle, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			cw.apply(ctx)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("config watch error", "error", err)
		case <-cw.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// apply re-reads the config file and reloads plugins whose config changed.
func (cw *ConfigWatcher) apply(ctx context.Context) {
	ctx = logging.EnsureLogger(ctx)
	log := logging.FromContext(ctx)

	m := cw.manager
	if err := m.app.Config.Load(file.Provider(cw.path), yaml.Parser()); err != nil {
		log.Errorw("failed to reload config file", "path", cw.path, "error", err)
		return
	}
	for _, e := range m.reg.snapshot() {
		name := e.desc.Name
		fresh := m.pluginConfig(name)
		enabled := m.pluginEnabled(name)
		if reflect.DeepEqual(e.config, fresh) && enabled == e.desc.Enabled {
			continue
		}
		log.Infow("plugin config changed, reloading", "plugin", name)
		if err := m.Reload(ctx, name); err != nil {
			log.Errorw("plugin reload failed", "plugin", name, "error", err)
		}
	}
}
