package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyflow/complyflow/internal/scanner"
)

func TestServeHandler(t *testing.T) {
	testEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	site := testSite(t)

	h, err := serveHandler()
	require.NoError(t, err)

	t.Run("scan through the API", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := strings.NewReader(`{"url": "` + site.URL + `/"}`)
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scans", body))
		require.Equal(t, http.StatusOK, rec.Code)

		var res scanner.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.NotEmpty(t, res.ScanID)
	})

	t.Run("explain without key", func(t *testing.T) {
		scans := storedScans(t)
		require.NotEmpty(t, scans)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scans/"+scans[0].ID+"/explain", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("dashboard", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ComplyFlow")
	})
}
