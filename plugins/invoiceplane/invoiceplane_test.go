package invoiceplane

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbridge/docbridge"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/index.php/api/v1/system", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(SystemInfo{Version: "1.6.1"})
	})
	mux.HandleFunc("/index.php/api/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "test-key", r.PostForm.Get("key"))
		require.Equal(t, "7", r.PostForm.Get("client_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{"invoice_id": 88})
	})
	mux.HandleFunc("/index.php/api/v1/clients", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPlugin(t *testing.T, srv *httptest.Server) *PlanePlugin {
	t.Helper()
	p := Plugin()
	require.NoError(t, p.Configure(map[string]any{
		"baseUrl": srv.URL,
		"apiKey":  "test-key",
	}))
	client, err := NewClient(srv.URL, "test-key", nil)
	require.NoError(t, err)
	p.client = client
	return p
}

func TestClient_SystemInfo(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL, "test-key", nil)
	require.NoError(t, err)

	info, err := client.SystemInfo(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "1.6.1", info.Version)
}

func TestClient_BadKey(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL, "wrong", nil)
	require.NoError(t, err)

	_, err = client.SystemInfo(t.Context())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestSyncData_Invoice(t *testing.T) {
	p := newTestPlugin(t, newTestServer(t))

	result, err := p.SyncData(t.Context(), docbridge.SyncPayload{
		Kind: "invoice",
		Data: map[string]any{
			"number":   "IP-88",
			"date":     "2024-03-15",
			"clientId": "7",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "88", result.RemoteID)
	assert.Equal(t, 1, result.Count)
}

func TestSyncData_ClientPlainTextResponse(t *testing.T) {
	p := newTestPlugin(t, newTestServer(t))

	result, err := p.SyncData(t.Context(), docbridge.SyncPayload{
		Kind: "client",
		Data: map[string]any{"name": "Acme"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.RemoteID)
	assert.Equal(t, 1, result.Count)
}

func TestSyncData_UnsupportedKind(t *testing.T) {
	p := newTestPlugin(t, newTestServer(t))

	_, err := p.SyncData(t.Context(), docbridge.SyncPayload{Kind: "receipt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sync kind")
}

func TestSyncData_NotInitialized(t *testing.T) {
	_, err := Plugin().SyncData(t.Context(), docbridge.SyncPayload{Kind: "invoice"})
	assert.ErrorIs(t, err, docbridge.ErrNotInitialized)
}

func TestConfigSchemaRequiresCredentials(t *testing.T) {
	_, err := docbridge.ValidateConfig(Plugin().ConfigSchema(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field")
}

func TestRoles(t *testing.T) {
	assert.True(t, docbridge.HasRole(Plugin(), docbridge.RoleIntegration))
}
