package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/registry"
	"github.com/tendant/simple-registry/pkg/registry/api"
	"github.com/tendant/simple-registry/pkg/registry/config"
)

func newTestRouter(t *testing.T, auth ...func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	serverConfig, err := config.Load(config.WithEnvironment("testing"))
	require.NoError(t, err)

	stores, err := serverConfig.BuildStores(context.Background())
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	publisher, err := serverConfig.BuildPublisher(stores, nil)
	require.NoError(t, err)

	return newRouter(publisher, serverConfig, time.Minute, auth...)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/healthz", "/healthz/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestPublishThroughServer(t *testing.T) {
	r := newTestRouter(t)
	body := registry.EncodeFrame([]byte(`{"name":"demo","vers":"1.0.0"}`), []byte("abc"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/crates/new", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"warnings":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/crates/new", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Detail, "already exists")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/crates/demo/1.0.0", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthGuardsCrateRoutes(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	r := newTestRouter(t, deny)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/crates/demo", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/crates/demo", nil)
	req.Header.Set("Authorization", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Health checks stay open.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
