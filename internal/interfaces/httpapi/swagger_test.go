package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPI_ServesEmbeddedDocumentWithETag(t *testing.T) {
	router := newTestRouter(&fakeProvider{}, nil)

	rec := serve(t, router, "/openapi.yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, openAPIETag, rec.Header().Get("ETag"))
	assert.Contains(t, rec.Body.String(), "/api/stats/{category}")

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Header.Set("If-None-Match", openAPIETag)
	cached := httptest.NewRecorder()
	router.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.String())
}

func TestSwaggerUI_PointsAtDocument(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeProvider{}, nil), "/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "url: '/openapi.yaml'")
}

func TestSwaggerRoutesDisabled(t *testing.T) {
	router := NewRouter(NewHandler(nil, nil, nil), nil, false, nil)
	rec := serve(t, router, "/docs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
