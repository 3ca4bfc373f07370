package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSuccess(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	JSONSuccess(w, r, map[string]int{"regions": 3}, map[string]any{"limit": 50})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"regions": float64(3)}, body["data"])
	assert.Equal(t, map[string]any{"request_id": "req-1", "limit": float64(50)}, body["meta"])
}

func TestJSONSuccess_NoMeta(t *testing.T) {
	w := httptest.NewRecorder()
	JSONAccepted(w, httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"batch_id": "b"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.NotContains(t, w.Body.String(), "meta")
}

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, httptest.NewRequest(http.MethodPost, "/", nil), http.StatusConflict, "RUN_IN_PROGRESS", "busy",
		[]ErrorDetail{{Field: "bbb_ids", Message: "x"}})

	assert.Equal(t, http.StatusConflict, w.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "RUN_IN_PROGRESS", body.Error.Code)
	assert.Len(t, body.Error.Details, 1)
	assert.False(t, strings.Contains(w.Body.String(), `"meta"`))
}
