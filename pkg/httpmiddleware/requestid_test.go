package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var fromCtx string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	echoed := w.Header().Get("X-Request-ID")
	require.NoError(t, uuid.Validate(echoed))
	assert.Equal(t, echoed, fromCtx)
}

func TestRequestID_ReusesWellFormedUUID(t *testing.T) {
	const incoming = "a2b9d6f0-1e6f-4a8c-9c3d-7e5b2f4a1d08"

	handler := RequestID()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, incoming, w.Header().Get("X-Request-ID"))
}

func TestRequestID_ReplacesNonUUIDValues(t *testing.T) {
	handler := RequestID()(okHandler())

	for _, incoming := range []string{
		"trace-12345",
		"not a uuid",
		"<script>alert(1)</script>",
		"a2b9d6f0-1e6f-4a8c-9c3d",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", incoming)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		echoed := w.Header().Get("X-Request-ID")
		assert.NotEqual(t, incoming, echoed)
		assert.NoError(t, uuid.Validate(echoed), "replacement for %q must be a UUID", incoming)
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(t.Context()))
}
