package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/softball-stats/internal/platform/logging"
	"github.com/riskibarqy/softball-stats/internal/platform/resilience"
	"github.com/riskibarqy/softball-stats/internal/usecase"
)

// UpstreamHealth reports the circuit state of the stats provider.
type UpstreamHealth interface {
	BreakerSnapshot() resilience.Snapshot
}

type Handler struct {
	statsService *usecase.StatsService
	upstream     UpstreamHealth
	logger       *logging.Logger
	validator    *validator.Validate
}

func NewHandler(statsService *usecase.StatsService, upstream UpstreamHealth, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		statsService: statsService,
		upstream:     upstream,
		logger:       logger,
		validator:    validator.New(),
	}
}

type categoryPathParams struct {
	Category string `validate:"required,max=64,alphanum"`
}

type gamePathParams struct {
	GameID string `validate:"required,numeric,max=12"`
}

type archiveQueryParams struct {
	Path  string `validate:"required,startswith=/,max=256"`
	Limit int    `validate:"gte=0,lte=100"`
}

type archivedPayloadDTO struct {
	FetchID       string          `json:"fetchId"`
	Source        string          `json:"source"`
	EntityType    string          `json:"entityType"`
	EntityKey     string          `json:"entityKey"`
	PayloadHash   string          `json:"payloadHash"`
	SourceUpdated string          `json:"sourceUpdated,omitempty"`
	FetchedAt     time.Time       `json:"fetchedAt"`
	Payload       json.RawMessage `json:"payload"`
}

type healthDTO struct {
	Status   string               `json:"status"`
	Upstream *resilience.Snapshot `json:"upstream,omitempty"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	out := healthDTO{Status: "ok"}
	if h.upstream != nil {
		snapshot := h.upstream.BreakerSnapshot()
		out.Upstream = &snapshot
		if snapshot.State == resilience.CircuitStateOpen {
			out.Status = "degraded"
		}
	}

	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRankings")
	defer span.End()

	result, err := h.statsService.GetRankings(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "get rankings failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

func (h *Handler) ListStatCategories(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListStatCategories")
	defer span.End()

	writeJSON(ctx, w, http.StatusOK, h.statsService.ListCategories())
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	params := categoryPathParams{Category: strings.TrimSpace(r.PathValue("category"))}
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetStats", attribute.String("stats.category", params.Category))
	defer span.End()

	if err := h.validator.Struct(params); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid category: %v", usecase.ErrInvalidInput, err))
		return
	}

	board, err := h.statsService.GetStats(ctx, params.Category)
	if err != nil {
		h.logger.WarnContext(ctx, "get stats failed", "category", params.Category, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, board)
}

func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetStandings")
	defer span.End()

	body, err := h.statsService.GetStandings(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "get standings failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeRawJSON(ctx, w, http.StatusOK, body)
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	params := gamePathParams{GameID: strings.TrimSpace(r.PathValue("gameID"))}
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetGame", attribute.String("game.id", params.GameID))
	defer span.End()

	if err := h.validator.Struct(params); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid game id: %v", usecase.ErrInvalidInput, err))
		return
	}

	body, err := h.statsService.GetGame(ctx, params.GameID)
	if err != nil {
		h.logger.WarnContext(ctx, "get game failed", "game_id", params.GameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeRawJSON(ctx, w, http.StatusOK, body)
}

func (h *Handler) ListArchivedPayloads(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListArchivedPayloads")
	defer span.End()

	query := r.URL.Query()
	params := archiveQueryParams{Path: strings.TrimSpace(query.Get("path"))}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: limit must be an integer", usecase.ErrInvalidInput))
			return
		}
		params.Limit = limit
	}
	if err := h.validator.Struct(params); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid archive query: %v", usecase.ErrInvalidInput, err))
		return
	}

	items, err := h.statsService.RecentPayloads(ctx, params.Path, params.Limit)
	if err != nil {
		h.logger.WarnContext(ctx, "list archived payloads failed", "path", params.Path, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]archivedPayloadDTO, 0, len(items))
	for _, item := range items {
		payload := json.RawMessage(item.PayloadJSON)
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		out = append(out, archivedPayloadDTO{
			FetchID:       item.FetchID,
			Source:        item.Source,
			EntityType:    item.EntityType,
			EntityKey:     item.EntityKey,
			PayloadHash:   item.PayloadHash,
			SourceUpdated: item.SourceUpdated,
			FetchedAt:     item.FetchedAt,
			Payload:       payload,
		})
	}

	writeSuccess(ctx, w, http.StatusOK, out)
}
