package ncaa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	"github.com/riskibarqy/softball-stats/internal/platform/logging"
	"github.com/riskibarqy/softball-stats/internal/platform/ratelimit"
	"github.com/riskibarqy/softball-stats/internal/platform/resilience"
	"github.com/riskibarqy/softball-stats/internal/usecase"
)

const (
	defaultBaseURL   = "https://ncaa-api.henrygd.me"
	defaultUserAgent = "College Softball App/1.0"
	defaultTimeout   = 15 * time.Second
	defaultMaxPages  = 50
	maxBodyBytes     = 6 << 20

	payloadSource = "ncaa"
	apiKeyHeader  = "x-ncaa-key"
)

var errNCAATransient = crerr.New("ncaa transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	UserAgent      string
	Timeout        time.Duration
	MaxPages       int
	Limiter        ratelimit.Limiter
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the NCAA stats API. Every request waits on the shared
// limiter; identical in-flight requests are coalesced.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	maxPages   int
	limiter    ratelimit.Limiter
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
	flight     resilience.SingleFlight
	now        func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = timeout
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = defaultMaxPages
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewSpacer(ratelimit.DefaultInterval, logger)
	}

	breaker := resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker)
	breaker.OnStateChange(func(from, to resilience.CircuitState, snap resilience.Snapshot) {
		fields := []any{"from", from, "to", to, "consecutive_failures", snap.ConsecutiveFailures}
		if snap.RetryAt != nil {
			fields = append(fields, "retry_at", snap.RetryAt.UTC().Format(time.RFC3339))
		}
		if to == resilience.CircuitStateOpen {
			logger.Warn("ncaa circuit breaker state changed", fields...)
			return
		}
		logger.Info("ncaa circuit breaker state changed", fields...)
	})

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		userAgent:  userAgent,
		maxPages:   maxPages,
		limiter:    limiter,
		logger:     logger,
		breaker:    breaker,
		now:        time.Now,
	}
}

// BreakerSnapshot exposes the upstream circuit state for health checks.
func (c *Client) BreakerSnapshot() resilience.Snapshot {
	return c.breaker.Snapshot()
}

// get issues one rate limited GET and returns the raw body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		c.logger.WarnContext(ctx, "ncaa circuit breaker rejected request", "path", path, "state", c.breaker.State())
		return nil, fmt.Errorf("%w: ncaa stats provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}

	// Joined callers share this request, so one caller going away must not
	// cancel it. The http client timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	out, err, _ := c.flight.Do(path, func() (any, error) {
		if err := c.limiter.Wait(shared); err != nil {
			return nil, crerr.Wrap(err, "wait for upstream slot")
		}

		raw, reqErr := c.executeRequest(shared, c.baseURL+path)
		switch {
		case reqErr == nil:
			c.breaker.RecordSuccess()
		case isNCAACircuitFailure(reqErr):
			c.breaker.RecordFailure()
		default:
			c.breaker.RecordSuccess()
		}
		return raw, reqErr
	})
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected response payload type %T", usecase.ErrUpstreamTransport, out)
	}
	return raw, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", usecase.ErrUpstreamTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	if c.logger.Enabled(logging.LevelDebug) {
		c.logger.DebugContext(ctx, "ncaa request", "curl", buildCurlPreview(fullURL, c.userAgent, c.apiKey != ""))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: send request: %w", usecase.ErrUpstreamTransport, ctxErr)
		}
		reqErr := fmt.Errorf("%w: %w: send request: %s", usecase.ErrUpstreamTransport, errNCAATransient, sanitize(err.Error(), c.apiKey))
		c.logger.WarnContext(ctx, "ncaa request failed", "url", fullURL, "error", reqErr)
		return nil, reqErr
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("%w: %w: read response body: %v", usecase.ErrUpstreamTransport, errNCAATransient, readErr)
	}

	c.logger.DebugContext(ctx, "ncaa response",
		"url", fullURL,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w: provider status=%d path=%s", usecase.ErrUpstreamTransport, usecase.ErrUpstreamNotFound, resp.StatusCode, req.URL.Path)
	case isTransientStatus(resp.StatusCode):
		reqErr := fmt.Errorf("%w: %w: provider status=%d body=%s", usecase.ErrUpstreamTransport, errNCAATransient, resp.StatusCode, abbreviateBody(raw))
		c.logger.WarnContext(ctx, "ncaa request failed", "url", fullURL, "error", reqErr)
		return nil, reqErr
	default:
		return nil, fmt.Errorf("%w: provider status=%d body=%s", usecase.ErrUpstreamTransport, resp.StatusCode, abbreviateBody(raw))
	}
}

func buildPayload(entityType, path string, raw []byte, sourceUpdated string, fetchedAt time.Time) rawdata.Payload {
	sum := sha256.Sum256(raw)
	return rawdata.Payload{
		Source:        payloadSource,
		EntityType:    entityType,
		EntityKey:     path,
		PayloadJSON:   string(raw),
		PayloadHash:   hex.EncodeToString(sum[:]),
		SourceUpdated: sourceUpdated,
		FetchedAt:     fetchedAt.UTC(),
	}
}

func buildCurlPreview(fullURL, userAgent string, withAPIKey bool) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	appendPart := func(part string) {
		if buf.Len() > 0 {
			_ = buf.WriteByte(' ')
		}
		_, _ = buf.WriteString(part)
	}

	appendPart("curl")
	appendPart(shellQuote(fullURL))
	appendPart("-H")
	appendPart(shellQuote("Accept: application/json"))
	appendPart("-H")
	appendPart(shellQuote("User-Agent: " + userAgent))
	if withAPIKey {
		appendPart("-H")
		appendPart(shellQuote(apiKeyHeader + ": ***"))
	}
	return buf.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func sanitize(value, secret string) string {
	value = strings.TrimSpace(value)
	if secret != "" {
		value = strings.ReplaceAll(value, secret, "REDACTED")
	}
	return value
}

func isNCAACircuitFailure(err error) bool {
	return stderrors.Is(err, errNCAATransient)
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
