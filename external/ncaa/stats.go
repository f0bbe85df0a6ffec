package ncaa

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	"github.com/riskibarqy/softball-stats/internal/domain/stats"
	"github.com/riskibarqy/softball-stats/internal/usecase"
)

// statsEnvelope is the common page wrapper. Only data is required; the
// other fields vary in type between upstream revisions.
type statsEnvelope struct {
	Sport   any `json:"sport"`
	Title   any `json:"title"`
	Updated any `json:"updated"`
	Page    any `json:"page"`
	Pages   any `json:"pages"`
	Data    any `json:"data"`
}

// FetchAllPages walks every page of a category leaderboard in order. The
// first page must succeed and carry a record list; later pages that fail or
// carry no record list are skipped.
func (c *Client) FetchAllPages(ctx context.Context, category stats.Category) (usecase.ExternalStatsPages, error) {
	basePath, err := category.EndpointPath()
	if err != nil {
		return usecase.ExternalStatsPages{}, fmt.Errorf("%w: %w", usecase.ErrInvalidInput, err)
	}

	ctx, span := startSpan(ctx, "ncaa.Client.FetchAllPages", attribute.String("stats.category", category.String()))
	defer span.End()

	raw, err := c.get(ctx, basePath)
	if err != nil {
		return usecase.ExternalStatsPages{}, fmt.Errorf("fetch %s page 1: %w", category, err)
	}

	var first statsEnvelope
	if err := sonic.Unmarshal(raw, &first); err != nil {
		return usecase.ExternalStatsPages{}, fmt.Errorf("%w: decode %s page 1: %v", usecase.ErrUpstreamTransport, category, err)
	}

	out := usecase.ExternalStatsPages{
		Title:         asString(first.Title),
		Updated:       asString(first.Updated),
		DeclaredPages: parsePageCount(first.Pages),
		FetchedPages:  1,
		RawPayloads:   []rawdata.Payload{buildPayload(rawdata.EntityStatsPage, basePath, raw, asString(first.Updated), c.now())},
	}
	records, ok := recordList(first.Data)
	if !ok {
		return usecase.ExternalStatsPages{}, fmt.Errorf("%w: %s page 1 data is not a list", usecase.ErrUpstreamTransport, category)
	}
	out.Records = records

	lastPage := out.DeclaredPages
	if lastPage > c.maxPages {
		c.logger.WarnContext(ctx, "ncaa page count capped",
			"category", category.String(),
			"declared_pages", lastPage,
			"max_pages", c.maxPages,
		)
		lastPage = c.maxPages
	}

	for page := 2; page <= lastPage; page++ {
		if ctx.Err() != nil {
			return usecase.ExternalStatsPages{}, fmt.Errorf("fetch %s page %d: %w", category, page, ctx.Err())
		}

		pagePath := fmt.Sprintf("%s/p%d", basePath, page)
		records, payload, ok := c.fetchSecondaryPage(ctx, category, page, pagePath)
		if !ok {
			continue
		}
		out.Records = append(out.Records, records...)
		out.RawPayloads = append(out.RawPayloads, payload)
		out.FetchedPages++
	}

	span.SetAttributes(
		attribute.Int("ncaa.pages.declared", out.DeclaredPages),
		attribute.Int("ncaa.pages.fetched", out.FetchedPages),
		attribute.Int("ncaa.records", len(out.Records)),
	)
	return out, nil
}

func (c *Client) fetchSecondaryPage(ctx context.Context, category stats.Category, page int, path string) ([]stats.RawRecord, rawdata.Payload, bool) {
	raw, err := c.get(ctx, path)
	if err != nil {
		c.logger.WarnContext(ctx, "ncaa page skipped", "category", category.String(), "page", page, "error", err)
		return nil, rawdata.Payload{}, false
	}

	var envelope statsEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		c.logger.WarnContext(ctx, "ncaa page skipped", "category", category.String(), "page", page, "reason", "undecodable body")
		return nil, rawdata.Payload{}, false
	}
	records, ok := recordList(envelope.Data)
	if !ok {
		c.logger.WarnContext(ctx, "ncaa page skipped", "category", category.String(), "page", page, "reason", "data is not a list")
		return nil, rawdata.Payload{}, false
	}

	return records, buildPayload(rawdata.EntityStatsPage, path, raw, asString(envelope.Updated), c.now()), true
}

// recordList converts a decoded data field into records. Non-object items
// become empty records so positions are preserved.
func recordList(data any) ([]stats.RawRecord, bool) {
	items, ok := data.([]any)
	if !ok {
		return nil, false
	}

	out := make([]stats.RawRecord, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			fields = map[string]any{}
		}
		out = append(out, stats.RawRecord(fields))
	}
	return out, true
}

func parsePageCount(raw any) int {
	var pages int
	switch value := raw.(type) {
	case float64:
		pages = int(value)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			pages = parsed
		}
	}
	if pages < 1 {
		return 1
	}
	return pages
}

func asString(raw any) string {
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}
