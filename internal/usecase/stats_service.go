package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/softball-stats/internal/domain/rankings"
	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	"github.com/riskibarqy/softball-stats/internal/domain/stats"
	"github.com/riskibarqy/softball-stats/internal/platform/cache"
	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

var gameIDRegex = regexp.MustCompile(`^[0-9]{1,12}$`)

const (
	cacheKeyStats     = "stats"
	cacheKeyRankings  = "rankings"
	cacheKeyStandings = "standings"
	cacheKeyGame      = "game"

	maxRecentPayloads = 100
)

// StatsProvider fetches raw documents from the upstream stats API.
type StatsProvider interface {
	FetchAllPages(ctx context.Context, category stats.Category) (ExternalStatsPages, error)
	FetchRankings(ctx context.Context) (ExternalRankings, error)
	FetchStandings(ctx context.Context) (ExternalDocument, error)
	FetchGame(ctx context.Context, gameID string) (ExternalDocument, error)
}

// ExternalStatsPages is every record of a category leaderboard in upstream
// order, plus the first page's envelope metadata.
type ExternalStatsPages struct {
	Records       []stats.RawRecord
	Title         string
	Updated       string
	DeclaredPages int
	FetchedPages  int
	RawPayloads   []rawdata.Payload
}

type ExternalRankings struct {
	Title       string
	Updated     string
	Rows        any
	RawPayloads []rawdata.Payload
}

// ExternalDocument is an upstream body passed through as-is.
type ExternalDocument struct {
	Body        json.RawMessage
	RawPayloads []rawdata.Payload
}

// ResponseCache stores encoded responses by key.
type ResponseCache interface {
	GetOrLoad(ctx context.Context, key string, loader cache.Loader) ([]byte, error)
	Delete(ctx context.Context, key string)
}

type passthroughCache struct{}

func (passthroughCache) GetOrLoad(ctx context.Context, _ string, loader cache.Loader) ([]byte, error) {
	return loader(ctx)
}

func (passthroughCache) Delete(context.Context, string) {}

type StatsService struct {
	provider StatsProvider
	cache    ResponseCache
	archive  rawdata.Repository
	logger   *logging.Logger

	now        func() time.Time
	newFetchID func() string
}

// NewStatsService wires the read pipeline. cache and archive may be nil.
func NewStatsService(provider StatsProvider, responseCache ResponseCache, archive rawdata.Repository, logger *logging.Logger) *StatsService {
	if responseCache == nil {
		responseCache = passthroughCache{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &StatsService{
		provider:   provider,
		cache:      responseCache,
		archive:    archive,
		logger:     logger,
		now:        time.Now,
		newFetchID: uuid.NewString,
	}
}

// ListCategories returns every supported leaderboard category.
func (s *StatsService) ListCategories() []stats.CategoryInfo {
	return stats.DescribeCategories()
}

// GetStats returns the top of the leaderboard for a category name. Unknown
// names fail before any upstream request.
func (s *StatsService) GetStats(ctx context.Context, rawCategory string) (stats.Leaderboard, error) {
	category, err := stats.ParseCategory(rawCategory)
	if err != nil {
		return stats.Leaderboard{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.GetStats", attribute.String("stats.category", category.String()))
	defer span.End()

	payload, err := s.cache.GetOrLoad(ctx, cacheKey(cacheKeyStats, category.String()), func(ctx context.Context) ([]byte, error) {
		board, err := s.loadLeaderboard(ctx, category)
		if err != nil {
			return nil, err
		}
		return sonic.Marshal(board)
	})
	if err != nil {
		recordSpanError(span, err)
		return stats.Leaderboard{}, err
	}

	var board stats.Leaderboard
	if err := sonic.Unmarshal(payload, &board); err != nil {
		return stats.Leaderboard{}, fmt.Errorf("decode cached leaderboard category=%s: %w", category, err)
	}
	return board, nil
}

func (s *StatsService) loadLeaderboard(ctx context.Context, category stats.Category) (stats.Leaderboard, error) {
	pages, err := s.provider.FetchAllPages(ctx, category)
	if err != nil {
		return stats.Leaderboard{}, err
	}
	s.archivePayloads(ctx, pages.RawPayloads)

	if pages.DeclaredPages > 0 && pages.FetchedPages < pages.DeclaredPages {
		s.logger.WarnContext(ctx, "leaderboard assembled from partial pages",
			"category", category.String(),
			"declared_pages", pages.DeclaredPages,
			"fetched_pages", pages.FetchedPages,
		)
	}

	return stats.Assemble(category, pages.Records, pages.Updated, s.now()), nil
}

// GetRankings returns the normalized team poll.
func (s *StatsService) GetRankings(ctx context.Context) (rankings.Rankings, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.GetRankings")
	defer span.End()

	payload, err := s.cache.GetOrLoad(ctx, cacheKey(cacheKeyRankings), func(ctx context.Context) ([]byte, error) {
		poll, err := s.provider.FetchRankings(ctx)
		if err != nil {
			return nil, err
		}
		s.archivePayloads(ctx, poll.RawPayloads)
		return sonic.Marshal(rankings.Build(poll.Title, poll.Updated, poll.Rows, s.now()))
	})
	if err != nil {
		recordSpanError(span, err)
		return rankings.Rankings{}, err
	}

	var out rankings.Rankings
	if err := sonic.Unmarshal(payload, &out); err != nil {
		return rankings.Rankings{}, fmt.Errorf("decode cached rankings: %w", err)
	}
	return out, nil
}

// GetStandings returns the upstream conference standings document unchanged.
func (s *StatsService) GetStandings(ctx context.Context) (json.RawMessage, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.GetStandings")
	defer span.End()

	payload, err := s.cache.GetOrLoad(ctx, cacheKey(cacheKeyStandings), func(ctx context.Context) ([]byte, error) {
		doc, err := s.provider.FetchStandings(ctx)
		if err != nil {
			return nil, err
		}
		s.archivePayloads(ctx, doc.RawPayloads)
		return doc.Body, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// GetGame returns the upstream game detail document for a numeric game id.
func (s *StatsService) GetGame(ctx context.Context, gameID string) (json.RawMessage, error) {
	gameID = strings.TrimSpace(gameID)
	if !gameIDRegex.MatchString(gameID) {
		return nil, fmt.Errorf("%w: game id must be numeric", ErrInvalidInput)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.GetGame", attribute.String("game.id", gameID))
	defer span.End()

	payload, err := s.cache.GetOrLoad(ctx, cacheKey(cacheKeyGame, gameID), func(ctx context.Context) ([]byte, error) {
		doc, err := s.provider.FetchGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		s.archivePayloads(ctx, doc.RawPayloads)
		return doc.Body, nil
	})
	if err != nil {
		recordSpanError(span, err)
		if errors.Is(err, ErrUpstreamNotFound) {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// RefreshStats drops the cached leaderboard and loads it again.
func (s *StatsService) RefreshStats(ctx context.Context, category stats.Category) error {
	s.cache.Delete(ctx, cacheKey(cacheKeyStats, category.String()))
	_, err := s.GetStats(ctx, category.String())
	return err
}

func (s *StatsService) RefreshRankings(ctx context.Context) error {
	s.cache.Delete(ctx, cacheKey(cacheKeyRankings))
	_, err := s.GetRankings(ctx)
	return err
}

// RecentPayloads lists archived upstream bodies for one upstream path,
// newest first. limit <= 0 uses the repository default.
func (s *StatsService) RecentPayloads(ctx context.Context, entityKey string, limit int) ([]rawdata.Payload, error) {
	entityKey = strings.TrimSpace(entityKey)
	if !strings.HasPrefix(entityKey, "/") {
		return nil, fmt.Errorf("%w: entity key must be an upstream path", ErrInvalidInput)
	}
	if limit > maxRecentPayloads {
		limit = maxRecentPayloads
	}
	if s.archive == nil {
		return nil, fmt.Errorf("%w: payload archive is disabled", ErrNotFound)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.RecentPayloads", attribute.String("archive.entity_key", entityKey))
	defer span.End()

	items, err := s.archive.ListRecent(ctx, entityKey, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("%w: list archived payloads: %w", ErrDependencyUnavailable, err)
	}
	return items, nil
}

func (s *StatsService) archivePayloads(ctx context.Context, payloads []rawdata.Payload) {
	if s.archive == nil || len(payloads) == 0 {
		return
	}

	fetchID := s.newFetchID()
	now := s.now().UTC()
	items := make([]rawdata.Payload, 0, len(payloads))
	for _, item := range payloads {
		item.FetchID = fetchID
		if item.FetchedAt.IsZero() {
			item.FetchedAt = now
		}
		items = append(items, item)
	}

	if err := s.archive.UpsertMany(ctx, items); err != nil {
		s.logger.WarnContext(ctx, "archive upstream payloads failed", "fetch_id", fetchID, "count", len(items), "error", err)
	}
}

func cacheKey(parts ...string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, part := range parts {
		if i > 0 {
			_ = buf.WriteByte(':')
		}
		_, _ = buf.WriteString(part)
	}
	return buf.String()
}
