package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbridge/docbridge"
)

type fakePlugin struct {
	name    string
	initErr error
}

func (p *fakePlugin) Name() string    { return p.name }
func (p *fakePlugin) Version() string { return "1.0.0" }

func (p *fakePlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	return p.initErr
}

func (p *fakePlugin) Cleanup(ctx context.Context) error { return nil }

type fakeWebPlugin struct {
	fakePlugin
	greeting string
}

func (p *fakeWebPlugin) Routes() []docbridge.Route {
	return []docbridge.Route{
		{Method: http.MethodGet, Path: "/", Handler: func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, p.greeting)
		}},
	}
}

func (p *fakeWebPlugin) MenuItems() []docbridge.MenuItem {
	return []docbridge.MenuItem{{Name: "Hello", URL: "/plugins/" + p.name + "/"}}
}

type fakeAPIPlugin struct {
	fakePlugin
}

func (p *fakeAPIPlugin) APIRoutes() []docbridge.Route {
	return []docbridge.Route{
		{Method: http.MethodGet, Path: "/ping", Handler: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"pong":true}`)
		}},
	}
}

func (p *fakeAPIPlugin) APIDocs() map[string]any {
	return map[string]any{"GET /ping": "liveness probe"}
}

type fakeIntegrationPlugin struct {
	fakePlugin
	connErr error
}

func (p *fakeIntegrationPlugin) TestConnection(ctx context.Context) error { return p.connErr }

func (p *fakeIntegrationPlugin) SyncData(ctx context.Context, payload docbridge.SyncPayload) (*docbridge.SyncResult, error) {
	return &docbridge.SyncResult{Count: 1}, nil
}

func newTestServer(t *testing.T, plugins ...docbridge.Plugin) *Server {
	t.Helper()
	opts := []Option{WithBaseContext(t.Context())}
	for _, p := range plugins {
		p := p
		opts = append(opts, WithPlugin(func() docbridge.Plugin { return p }))
	}
	s := New(opts...)
	s.manager.InitAll(t.Context())
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func post(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t,
		&fakePlugin{name: "alpha"},
		&fakePlugin{name: "beta", initErr: errors.New("no dice")},
	)

	rec := get(t, s, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"initialized":1`)
	assert.Contains(t, rec.Body.String(), `"failed":1`)
	assert.Contains(t, rec.Body.String(), "no dice")
}

func TestPluginsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakePlugin{name: "alpha"})

	rec := get(t, s, "/api/plugins")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alpha"`)
}

func TestMenuEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeWebPlugin{fakePlugin: fakePlugin{name: "pages"}, greeting: "hi"})

	rec := get(t, s, "/api/menu")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/plugins/pages/")
}

func TestWebRoutesMounted(t *testing.T) {
	s := newTestServer(t, &fakeWebPlugin{fakePlugin: fakePlugin{name: "pages"}, greeting: "hello from pages"})

	rec := get(t, s, "/plugins/pages/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello from pages", rec.Body.String())
}

func TestAPIRoutesMounted(t *testing.T) {
	s := newTestServer(t, &fakeAPIPlugin{fakePlugin: fakePlugin{name: "probe"}})

	rec := get(t, s, "/api/plugins/probe/ping")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pong":true}`, rec.Body.String())

	rec = get(t, s, "/api/plugins/probe/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "liveness probe")
}

func TestUninitializedPluginRoutesUnavailable(t *testing.T) {
	s := newTestServer(t, &fakeWebPlugin{
		fakePlugin: fakePlugin{name: "pages", initErr: errors.New("bad creds")},
	})

	rec := get(t, s, "/plugins/pages/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReloadEndpoint(t *testing.T) {
	s := newTestServer(t, &fakePlugin{name: "alpha"})

	rec := post(t, s, "/api/plugins/alpha/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reloaded"`)
}

func TestReloadUnknownPlugin(t *testing.T) {
	s := newTestServer(t, &fakePlugin{name: "alpha"})

	rec := post(t, s, "/api/plugins/ghost/reload")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryFailedEndpoint(t *testing.T) {
	s := newTestServer(t, &fakePlugin{name: "alpha"})

	rec := post(t, s, "/api/retry-failed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attempted":0`)
}

func TestTestConnectionsEndpoint(t *testing.T) {
	s := newTestServer(t,
		&fakeIntegrationPlugin{fakePlugin: fakePlugin{name: "books"}},
		&fakeIntegrationPlugin{fakePlugin: fakePlugin{name: "flaky"}, connErr: errors.New("timeout")},
	)

	rec := post(t, s, "/api/test-connections")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"books":"ok"`)
	assert.Contains(t, rec.Body.String(), `"flaky":"timeout"`)
}
