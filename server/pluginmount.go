package server

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/docbridge/docbridge"
)

// pluginMount serves plugin-contributed routes for one role. The plugin is
// resolved from the URL per request: an unknown plugin answers 404, an
// uninitialized one 503, and a reload swaps the handlers along with the
// instance. Built subrouters are cached until the instance changes.
type pluginMount struct {
	manager *docbridge.Manager
	role    docbridge.Role

	mu    sync.Mutex
	cache map[string]*mountEntry
}

type mountEntry struct {
	plugin docbridge.Plugin
	router chi.Router
}

func newPluginMount(m *docbridge.Manager, role docbridge.Role) *pluginMount {
	return &pluginMount{manager: m, role: role, cache: map[string]*mountEntry{}}
}

func (pm *pluginMount) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "pluginName")
	if _, known := pm.manager.Registry().Status(name); !known {
		http.NotFound(w, r)
		return
	}

	p := pm.manager.Get(name)
	if p == nil {
		http.Error(w, "plugin unavailable: "+name, http.StatusServiceUnavailable)
		return
	}

	pm.mu.Lock()
	e := pm.cache[name]
	if e == nil || e.plugin != p {
		e = &mountEntry{plugin: p, router: buildRoutes(p, pm.role)}
		pm.cache[name] = e
	}
	router := e.router
	pm.mu.Unlock()

	if router == nil {
		http.NotFound(w, r)
		return
	}
	router.ServeHTTP(w, r)
}

func buildRoutes(p docbridge.Plugin, role docbridge.Role) chi.Router {
	var routes []docbridge.Route
	var docs http.HandlerFunc
	switch role {
	case docbridge.RoleWeb:
		if wp, ok := p.(docbridge.WebPlugin); ok {
			routes = wp.Routes()
		}
	case docbridge.RoleAPI:
		if ap, ok := p.(docbridge.APIPlugin); ok {
			routes = ap.APIRoutes()
			docs = apiDocsHandler(ap)
		}
	}
	if routes == nil {
		return nil
	}
	r := chi.NewRouter()
	for _, rt := range routes {
		r.Method(rt.Method, rt.Path, rt.Handler)
	}
	if docs != nil {
		r.Get("/docs", docs)
	}
	return r
}
