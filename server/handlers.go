package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docbridge/docbridge"
)

// Per-plugin budget for connection tests so one unreachable service can't
// stall the whole sweep.
const testConnectionTimeout = 15 * time.Second

func (s *Server) handleHealth(r *http.Request) (any, error) {
	return s.manager.HealthSummary(), nil
}

func (s *Server) handlePlugins(r *http.Request) (any, error) {
	return map[string]any{
		"plugins": s.manager.Registry().Descriptors(),
	}, nil
}

func (s *Server) handleMenu(r *http.Request) (any, error) {
	var items []docbridge.MenuItem
	for _, p := range s.manager.ByRole(docbridge.RoleWeb) {
		if wp, ok := p.(docbridge.WebPlugin); ok {
			items = append(items, wp.MenuItems()...)
		}
	}
	return map[string]any{"items": items}, nil
}

func (s *Server) handleReload(r *http.Request) (any, error) {
	name := chi.URLParam(r, "pluginName")
	if err := s.manager.Reload(r.Context(), name); err != nil {
		return nil, err
	}
	return map[string]any{"status": "reloaded", "plugin": name}, nil
}

func (s *Server) handleRetryFailed(r *http.Request) (any, error) {
	return s.manager.RetryFailed(r.Context()), nil
}

func (s *Server) handleTestConnections(r *http.Request) (any, error) {
	results := map[string]string{}
	for _, p := range s.manager.ByRole(docbridge.RoleIntegration) {
		ip, ok := p.(docbridge.IntegrationPlugin)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), testConnectionTimeout)
		if err := ip.TestConnection(ctx); err != nil {
			results[p.Name()] = err.Error()
		} else {
			results[p.Name()] = "ok"
		}
		cancel()
	}
	return map[string]any{"results": results}, nil
}

// apiDocsHandler is mounted per API plugin under its API prefix.
func apiDocsHandler(p docbridge.APIPlugin) http.HandlerFunc {
	return wrapJSONHandler(func(r *http.Request) (any, error) {
		return p.APIDocs(), nil
	})
}
