package statusapi

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usbsim/internal/history"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatusBeforeAnyRun(t *testing.T) {
	s := New(nil)
	rec := get(t, s, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"has_run":false`)
}

func TestHandleStatusAfterRecordRun(t *testing.T) {
	s := New(nil)
	s.RecordRun(history.Run{Scenario: "s1-nak-disabled-endpoint", Passed: true})

	rec := get(t, s, "/status")
	body := rec.Body.String()
	assert.Contains(t, body, "s1-nak-disabled-endpoint")
	assert.Contains(t, body, `"passed":true`)
}

func TestHandleStatusFallsBackToStore(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Record(history.Run{
		Scenario:  "s3-get-device-descriptor",
		Passed:    true,
		StartedAt: time.Now(),
	}))

	s := New(store)
	rec := get(t, s, "/status")

	body := rec.Body.String()
	assert.Contains(t, body, "s3-get-device-descriptor")
	assert.Contains(t, body, `"has_run":true`)
}

func TestHandleHistoryWithoutStore(t *testing.T) {
	s := New(nil)
	rec := get(t, s, "/scenarios/history")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
