package ncaa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	"github.com/riskibarqy/softball-stats/internal/domain/stats"
	"github.com/riskibarqy/softball-stats/internal/platform/logging"
	"github.com/riskibarqy/softball-stats/internal/platform/resilience"
	"github.com/riskibarqy/softball-stats/internal/usecase"
)

// countingLimiter never blocks; it counts how many calls asked for a slot.
type countingLimiter struct {
	waits atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

type requestLog struct {
	mu      sync.Mutex
	paths   []string
	headers []http.Header
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, r.URL.Path)
	l.headers = append(l.headers, r.Header.Clone())
}

func (l *requestLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths)
}

func newTestClient(t *testing.T, routes map[string]func(http.ResponseWriter), cfg ClientConfig) (*Client, *requestLog) {
	t.Helper()

	log := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		handler, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w)
	}))
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	cfg.HTTPClient = server.Client()
	if cfg.Limiter == nil {
		cfg.Limiter = &countingLimiter{}
	}
	cfg.Logger = logging.NewNop()
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	client := NewClient(cfg)
	client.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return client, log
}

func jsonBody(status int, body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

const hitsPath = "/stats/softball/d1/current/individual/1088"

func TestClient_FetchAllPages_WalksDeclaredPages(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, map[string]func(http.ResponseWriter){
		hitsPath:         jsonBody(200, `{"title":"Hits","updated":"04/01/2026","page":1,"pages":3,"data":[{"Name":"A","H":"90"},{"Name":"B","H":"88"}]}`),
		hitsPath + "/p2": jsonBody(200, `{"page":2,"pages":3,"data":[{"Name":"C","H":"80"},"junk"]}`),
		hitsPath + "/p3": jsonBody(200, `{"page":3,"pages":3,"data":{"message":"no rows"}}`),
	}, ClientConfig{})

	got, err := client.FetchAllPages(context.Background(), stats.CategoryHits)
	if err != nil {
		t.Fatalf("fetch all pages: %v", err)
	}

	if log.count() != 3 {
		t.Fatalf("expected 3 requests, got %d (%v)", log.count(), log.paths)
	}
	if got.DeclaredPages != 3 || got.FetchedPages != 2 {
		t.Fatalf("unexpected page counts declared=%d fetched=%d", got.DeclaredPages, got.FetchedPages)
	}
	if len(got.Records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(got.Records))
	}
	if got.Records[2]["Name"] != "C" || len(got.Records[3]) != 0 {
		t.Fatalf("unexpected page 2 records: %+v", got.Records[2:])
	}
	if got.Title != "Hits" || got.Updated != "04/01/2026" {
		t.Fatalf("unexpected envelope metadata: title=%q updated=%q", got.Title, got.Updated)
	}
	if len(got.RawPayloads) != 2 || got.RawPayloads[1].EntityKey != hitsPath+"/p2" {
		t.Fatalf("unexpected raw payloads: %+v", got.RawPayloads)
	}
	if got.RawPayloads[0].EntityType != rawdata.EntityStatsPage || got.RawPayloads[0].PayloadHash == "" {
		t.Fatalf("expected hashed stats page payload, got %+v", got.RawPayloads[0])
	}
}

func TestClient_FetchAllPages_SkipsFailedSecondaryPage(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, map[string]func(http.ResponseWriter){
		hitsPath:         jsonBody(200, `{"pages":"3","data":[{"Name":"A"}]}`),
		hitsPath + "/p2": jsonBody(500, `oops`),
		hitsPath + "/p3": jsonBody(200, `{"data":[{"Name":"C"}]}`),
	}, ClientConfig{})

	got, err := client.FetchAllPages(context.Background(), stats.CategoryHits)
	if err != nil {
		t.Fatalf("fetch all pages: %v", err)
	}
	if len(got.Records) != 2 || got.FetchedPages != 2 {
		t.Fatalf("expected pages 1 and 3 only, got records=%d fetched=%d", len(got.Records), got.FetchedPages)
	}
}

func TestClient_FetchAllPages_CapsPageCount(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, map[string]func(http.ResponseWriter){
		hitsPath:         jsonBody(200, `{"pages":10,"data":[]}`),
		hitsPath + "/p2": jsonBody(200, `{"data":[]}`),
	}, ClientConfig{MaxPages: 2})

	if _, err := client.FetchAllPages(context.Background(), stats.CategoryHits); err != nil {
		t.Fatalf("fetch all pages: %v", err)
	}
	if log.count() != 2 {
		t.Fatalf("expected page walk capped at 2 requests, got %d", log.count())
	}
}

func TestClient_FetchAllPages_InvalidCategoryMakesNoRequest(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, nil, ClientConfig{})

	_, err := client.FetchAllPages(context.Background(), stats.Category("wins"))
	if !errors.Is(err, usecase.ErrInvalidInput) || !errors.Is(err, stats.ErrInvalidCategory) {
		t.Fatalf("expected invalid category error, got %v", err)
	}
	if log.count() != 0 {
		t.Fatalf("expected no requests, got %d", log.count())
	}
}

func TestClient_FetchAllPages_FirstPageFailurePropagates(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, map[string]func(http.ResponseWriter){
		hitsPath: jsonBody(502, `bad gateway`),
	}, ClientConfig{})

	_, err := client.FetchAllPages(context.Background(), stats.CategoryHits)
	if !errors.Is(err, usecase.ErrUpstreamTransport) {
		t.Fatalf("expected ErrUpstreamTransport, got %v", err)
	}
	if !strings.Contains(err.Error(), "status=502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, map[string]func(http.ResponseWriter){
		rankingsPath: jsonBody(200, `{"data":[]}`),
	}, ClientConfig{APIKey: "secret-key"})

	if _, err := client.FetchRankings(context.Background()); err != nil {
		t.Fatalf("fetch rankings: %v", err)
	}

	header := log.headers[0]
	if header.Get("Accept") != "application/json" {
		t.Fatalf("expected json accept header, got %q", header.Get("Accept"))
	}
	if header.Get("User-Agent") != defaultUserAgent {
		t.Fatalf("expected default user agent, got %q", header.Get("User-Agent"))
	}
	if header.Get(apiKeyHeader) != "secret-key" {
		t.Fatalf("expected api key header, got %q", header.Get(apiKeyHeader))
	}
}

func TestClient_FetchRankings(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, map[string]func(http.ResponseWriter){
		rankingsPath: jsonBody(200, `{"title":"NFCA Top 25","updated":"April 28, 2026","data":[{"RANK":"1","SCHOOL":"Texas"}]}`),
	}, ClientConfig{})

	got, err := client.FetchRankings(context.Background())
	if err != nil {
		t.Fatalf("fetch rankings: %v", err)
	}
	rows, ok := got.Rows.([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected one raw row, got %#v", got.Rows)
	}
	if got.Title != "NFCA Top 25" || got.Updated != "April 28, 2026" {
		t.Fatalf("unexpected rankings metadata: %+v", got)
	}
	if got.RawPayloads[0].EntityType != rawdata.EntityRankings {
		t.Fatalf("expected rankings payload, got %q", got.RawPayloads[0].EntityType)
	}
}

func TestClient_FetchStandings_FallsBackToCurrentPath(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, map[string]func(http.ResponseWriter){
		standingsFallbackPath: jsonBody(200, `{"data":[{"conference":"SEC"}]}`),
	}, ClientConfig{})

	got, err := client.FetchStandings(context.Background())
	if err != nil {
		t.Fatalf("fetch standings: %v", err)
	}
	if string(got.Body) != `{"data":[{"conference":"SEC"}]}` {
		t.Fatalf("unexpected standings body %s", got.Body)
	}
	if log.count() != 2 || log.paths[1] != standingsFallbackPath {
		t.Fatalf("expected fallback request, got %v", log.paths)
	}
}

func TestClient_FetchGame(t *testing.T) {
	t.Parallel()

	t.Run("rejects non numeric id", func(t *testing.T) {
		client, log := newTestClient(t, nil, ClientConfig{})
		if _, err := client.FetchGame(context.Background(), "12a"); !errors.Is(err, usecase.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if log.count() != 0 {
			t.Fatalf("expected no requests")
		}
	})

	t.Run("maps 404", func(t *testing.T) {
		client, _ := newTestClient(t, nil, ClientConfig{})
		_, err := client.FetchGame(context.Background(), "6305345")
		if !errors.Is(err, usecase.ErrUpstreamNotFound) || !errors.Is(err, usecase.ErrUpstreamTransport) {
			t.Fatalf("expected upstream not found, got %v", err)
		}
	})

	t.Run("rejects non json body", func(t *testing.T) {
		client, _ := newTestClient(t, map[string]func(http.ResponseWriter){
			"/game/42": jsonBody(200, `<html>maintenance</html>`),
		}, ClientConfig{})
		if _, err := client.FetchGame(context.Background(), "42"); !errors.Is(err, usecase.ErrUpstreamTransport) {
			t.Fatalf("expected ErrUpstreamTransport, got %v", err)
		}
	})
}

func TestClient_CircuitBreakerOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, map[string]func(http.ResponseWriter){
		"/game/1": jsonBody(503, `down`),
	}, ClientConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}})

	for i := 0; i < 2; i++ {
		if _, err := client.FetchGame(context.Background(), "1"); !errors.Is(err, usecase.ErrUpstreamTransport) {
			t.Fatalf("call %d: expected ErrUpstreamTransport, got %v", i, err)
		}
	}

	_, err := client.FetchGame(context.Background(), "1")
	if !errors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
	if log.count() != 2 {
		t.Fatalf("expected open breaker to short circuit, got %d requests", log.count())
	}
	if client.BreakerSnapshot().State != resilience.CircuitStateOpen {
		t.Fatalf("expected open state, got %s", client.BreakerSnapshot().State)
	}
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, nil, ClientConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 1,
	}})

	for i := 0; i < 3; i++ {
		_, _ = client.FetchGame(context.Background(), "7")
	}
	if log.count() != 3 {
		t.Fatalf("expected every 404 to reach upstream, got %d", log.count())
	}
}

func TestBuildCurlPreview_MasksAPIKey(t *testing.T) {
	t.Parallel()

	got := buildCurlPreview("https://example.test/rankings/softball/d1", "UA", true)
	if !strings.Contains(got, "x-ncaa-key: ***") || strings.Contains(got, "secret") {
		t.Fatalf("unexpected curl preview %q", got)
	}
}

func TestClient_LimiterGatesEveryRequest(t *testing.T) {
	t.Parallel()

	t.Run("page walk", func(t *testing.T) {
		limiter := &countingLimiter{}
		client, log := newTestClient(t, map[string]func(http.ResponseWriter){
			hitsPath:         jsonBody(200, `{"pages":3,"data":[{"Name":"A"}]}`),
			hitsPath + "/p2": jsonBody(200, `{"data":[{"Name":"B"}]}`),
			hitsPath + "/p3": jsonBody(500, `oops`),
		}, ClientConfig{Limiter: limiter})

		if _, err := client.FetchAllPages(context.Background(), stats.CategoryHits); err != nil {
			t.Fatalf("fetch all pages: %v", err)
		}
		if got := int(limiter.waits.Load()); got != 3 || got != log.count() {
			t.Fatalf("expected one wait per request, waits=%d requests=%d", got, log.count())
		}
	})

	t.Run("standings fallback", func(t *testing.T) {
		limiter := &countingLimiter{}
		client, log := newTestClient(t, map[string]func(http.ResponseWriter){
			standingsFallbackPath: jsonBody(200, `{"data":[]}`),
		}, ClientConfig{Limiter: limiter})

		if _, err := client.FetchStandings(context.Background()); err != nil {
			t.Fatalf("fetch standings: %v", err)
		}
		if got := int(limiter.waits.Load()); got != 2 || got != log.count() {
			t.Fatalf("expected one wait per request, waits=%d requests=%d", got, log.count())
		}
	})

	t.Run("rankings", func(t *testing.T) {
		limiter := &countingLimiter{}
		client, log := newTestClient(t, map[string]func(http.ResponseWriter){
			rankingsPath: jsonBody(200, `{"data":[]}`),
		}, ClientConfig{Limiter: limiter})

		if _, err := client.FetchRankings(context.Background()); err != nil {
			t.Fatalf("fetch rankings: %v", err)
		}
		if got := int(limiter.waits.Load()); got != 1 || got != log.count() {
			t.Fatalf("expected one wait per request, waits=%d requests=%d", got, log.count())
		}
	})
}

func TestClient_FetchAllPages_FirstPageWithoutListFails(t *testing.T) {
	t.Parallel()

	client, log := newTestClient(t, map[string]func(http.ResponseWriter){
		hitsPath: jsonBody(200, `{"pages":3,"data":{"message":"no rows"}}`),
	}, ClientConfig{})

	_, err := client.FetchAllPages(context.Background(), stats.CategoryHits)
	if !errors.Is(err, usecase.ErrUpstreamTransport) {
		t.Fatalf("expected ErrUpstreamTransport, got %v", err)
	}
	if log.count() != 1 {
		t.Fatalf("expected no secondary pages after a bad first page, got %v", log.paths)
	}
}

func TestClient_SharedRequestSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client, log := newTestClient(t, map[string]func(http.ResponseWriter){
		rankingsPath: func(w http.ResponseWriter) {
			once.Do(func() { close(entered) })
			<-release
			jsonBody(200, `{"title":"NFCA Top 25","data":[]}`)(w)
		},
	}, ClientConfig{})

	ctxA, cancelA := context.WithCancel(context.Background())
	go func() { _, _ = client.FetchRankings(ctxA) }()
	<-entered

	resB := make(chan error, 1)
	go func() {
		_, err := client.FetchRankings(context.Background())
		resB <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	close(release)

	select {
	case err := <-resB:
		if err != nil {
			t.Fatalf("joined caller failed after another caller cancelled: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("joined caller never returned")
	}
	if log.count() != 1 {
		t.Fatalf("expected one shared upstream request, got %d", log.count())
	}
}
