package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamr/hamrd/internal/manifest"
)

type fakeLister struct {
	plugins []*manifest.Discovered
}

func (f *fakeLister) ListPlugins() []*manifest.Discovered { return f.plugins }

func TestHealthz_ReportsSessionCount(t *testing.T) {
	r := New(&fakeLister{}, func() int { return 2 })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["sessions"])
}

func TestPlugins_IncludesRenderedDescription(t *testing.T) {
	lister := &fakeLister{plugins: []*manifest.Discovered{
		{
			Manifest: &manifest.Manifest{
				ID: "calc", Name: "Calculator", Description: "a **simple** calculator",
			},
			IsBuiltin: true,
		},
	}}
	r := New(lister, func() int { return 0 })

	req := httptest.NewRequest(http.MethodGet, "/plugins", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var plugins []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plugins))
	require.Len(t, plugins, 1)
	assert.Equal(t, "calc", plugins[0]["id"])
	assert.Contains(t, plugins[0]["description_html"], "<strong>simple</strong>")
}

func TestMetrics_ServesPrometheusFormat(t *testing.T) {
	r := New(&fakeLister{}, func() int { return 0 })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
