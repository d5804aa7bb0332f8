package invoiceninja

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
	mux.HandleFunc("/api/v1/companies", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-TOKEN") != "test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []Company{{ID: "co1", Name: "Test Co"}},
		})
	})
	mux.HandleFunc("/api/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		var inv Invoice
		require.NoError(t, json.NewDecoder(r.Body).Decode(&inv))
		inv.ID = "inv9"
		_ = json.NewEncoder(w).Encode(map[string]any{"data": inv})
	})
	mux.HandleFunc("/api/v1/clients", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": ClientRecord{ID: "cli3"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPlugin(t *testing.T, srv *httptest.Server) *NinjaPlugin {
	t.Helper()
	p := Plugin()
	require.NoError(t, p.Configure(map[string]any{
		"baseUrl":  srv.URL,
		"apiToken": "test-token",
	}))
	client, err := NewClient(srv.URL, "test-token", nil)
	require.NoError(t, err)
	p.client = client
	return p
}

func TestClient_Company(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL, "test-token", nil)
	require.NoError(t, err)

	company, err := client.Company(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Test Co", company.Name)
}

func TestClient_BadToken(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL, "wrong", nil)
	require.NoError(t, err)

	_, err = client.Company(t.Context())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestSyncData_Invoice(t *testing.T) {
	p := newTestPlugin(t, newTestServer(t))

	result, err := p.SyncData(t.Context(), docbridge.SyncPayload{
		Kind: "invoice",
		Data: map[string]any{
			"number":   "INV-7",
			"clientId": "cli3",
			"lineItems": []any{
				map[string]any{"notes": "Consulting", "quantity": 2.0, "cost": 150.0},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "inv9", result.RemoteID)
	assert.Equal(t, 1, result.Count)
}

func TestSyncData_Client(t *testing.T) {
	p := newTestPlugin(t, newTestServer(t))

	result, err := p.SyncData(t.Context(), docbridge.SyncPayload{
		Kind: "client",
		Data: map[string]any{"name": "Acme", "email": "ap@acme.example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cli3", result.RemoteID)
}

func TestSyncData_UnsupportedKind(t *testing.T) {
	p := newTestPlugin(t, newTestServer(t))

	_, err := p.SyncData(t.Context(), docbridge.SyncPayload{Kind: "purchase-order"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sync kind")
}

func TestSyncData_NotInitialized(t *testing.T) {
	_, err := Plugin().SyncData(t.Context(), docbridge.SyncPayload{Kind: "invoice"})
	assert.ErrorIs(t, err, docbridge.ErrNotInitialized)
}

func TestConfigSchemaRequiresCredentials(t *testing.T) {
	_, err := docbridge.ValidateConfig(Plugin().ConfigSchema(), map[string]any{
		"baseUrl": "http://ninja.local",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field: apiToken")
}

func TestRoles(t *testing.T) {
	p := Plugin()
	assert.True(t, docbridge.HasRole(p, docbridge.RoleIntegration))
	assert.False(t, docbridge.HasRole(p, docbridge.RoleAPI))
}
