package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/softball-stats/internal/domain/stats"
	"github.com/riskibarqy/softball-stats/internal/platform/logging"
	"github.com/riskibarqy/softball-stats/internal/usecase"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) googleResponseEnvelope {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var env googleResponseEnvelope
	if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope %q: %v", rec.Body.String(), err)
	}
	if env.APIVersion != googleAPIVersion {
		t.Fatalf("expected apiVersion %s, got %q", googleAPIVersion, env.APIVersion)
	}
	return env
}

func TestWriteSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSuccess(context.Background(), rec, http.StatusOK, map[string]string{"status": "ok"})

	env := decodeEnvelope(t, rec)
	if rec.Code != http.StatusOK || env.Data == nil || env.Error != nil {
		t.Fatalf("unexpected success envelope: code=%d %+v", rec.Code, env)
	}
}

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(context.Background(), rec, fmt.Errorf("%w: %w", usecase.ErrInvalidInput, stats.ErrInvalidCategory))

	env := decodeEnvelope(t, rec)
	if rec.Code != http.StatusBadRequest || env.Error == nil {
		t.Fatalf("unexpected error response: code=%d %+v", rec.Code, env)
	}
	if env.Error.Status != "INVALID_ARGUMENT" || env.Error.Code != http.StatusBadRequest {
		t.Fatalf("unexpected error body: %+v", env.Error)
	}
	if len(env.Error.Errors) != 1 || env.Error.Errors[0].Reason != "invalidCategory" || env.Error.Errors[0].Domain != errorDomain {
		t.Fatalf("unexpected error items: %+v", env.Error.Errors)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/games/{gameID}", func(http.ResponseWriter, *http.Request) {
		panic("nil box score")
	})

	rec := httptest.NewRecorder()
	recoverPanic(logging.NewNop(), mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/6307110", nil))

	env := decodeEnvelope(t, rec)
	if rec.Code != http.StatusInternalServerError || env.Error == nil {
		t.Fatalf("expected 500 envelope, got code=%d %+v", rec.Code, env)
	}
	if strings.Contains(rec.Body.String(), "nil box score") {
		t.Fatalf("panic value leaked to client: %s", rec.Body.String())
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{name: "invalid category", err: fmt.Errorf("%w: %w", usecase.ErrInvalidInput, stats.ErrInvalidCategory), status: http.StatusBadRequest, reason: "invalidCategory"},
		{name: "not found", err: fmt.Errorf("%w: game", usecase.ErrNotFound), status: http.StatusNotFound, reason: "notFound"},
		{name: "breaker open", err: usecase.ErrDependencyUnavailable, status: http.StatusServiceUnavailable, reason: "dependencyUnavailable"},
		{name: "upstream 404 on stats", err: fmt.Errorf("%w: %w", usecase.ErrUpstreamTransport, usecase.ErrUpstreamNotFound), status: http.StatusBadGateway, reason: "upstreamFailure"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, reason: "internalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if got.HTTPStatus != tt.status || got.Reason != tt.reason {
				t.Fatalf("mapError(%v)=%+v want status=%d reason=%s", tt.err, got, tt.status, tt.reason)
			}
		})
	}
}

func TestWriteError_HidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(context.Background(), rec, errors.New("pq: password authentication failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("expected internal error detail to be hidden, got %s", rec.Body.String())
	}
}
