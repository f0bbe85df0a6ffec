package httpapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestStartSpan_OnlyHandlersUnderTracedParent(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	parentCtx, parent := provider.Tracer("test").Start(context.Background(), "GET /api/stats/{category}")
	defer parent.End()

	_, child := startSpan(parentCtx, "httpapi.Handler.GetStats")
	assert.NotEqual(t, parent.SpanContext().SpanID(), child.SpanContext().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	child.End()

	helperCtx, helper := startSpan(parentCtx, "httpapi.writeError")
	assert.False(t, helper.SpanContext().IsValid())
	assert.Equal(t, parentCtx, helperCtx)

	_, untraced := startSpan(context.Background(), "httpapi.Handler.Healthz")
	assert.False(t, untraced.SpanContext().IsValid())
}

func TestShouldTraceRequest(t *testing.T) {
	for _, path := range []string{"/healthz", "/livez", " /readyz ", "/docs", "/openapi.yaml"} {
		assert.False(t, shouldTraceRequest(path), path)
	}
	for _, path := range []string{"/api/stats/hits", "/api/rankings", "/api/softball/games/123", "/"} {
		assert.True(t, shouldTraceRequest(path), path)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/api/stats":                      "/api/stats",
		"/api/stats/homeRuns":             "/api/stats/{category}",
		"/api/softball/stats/era":         "/api/softball/stats/{category}",
		"/api/games/3146430":              "/api/games/{gameID}",
		"/api/rankings":                   "/api/rankings",
		"/api/archive/payloads":           "/api/archive/payloads",
		"/api/softball/games/3146430/box": "/api/softball/games/{gameID}/box",
	}
	for in, want := range tests {
		assert.Equal(t, want, routeLabel(in), in)
	}
}
