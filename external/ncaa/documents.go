package ncaa

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sonic "github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	"github.com/riskibarqy/softball-stats/internal/usecase"
)

const (
	rankingsPath          = "/rankings/softball/d1"
	standingsPath         = "/standings/softball/d1"
	standingsFallbackPath = "/standings/softball/d1/current"
	gamePathPrefix        = "/game/"
)

var digitsRegex = regexp.MustCompile(`^\d+$`)

type rankingsEnvelope struct {
	Title   any `json:"title"`
	Updated any `json:"updated"`
	Data    any `json:"data"`
}

// FetchRankings returns the raw poll rows with their envelope metadata.
func (c *Client) FetchRankings(ctx context.Context) (usecase.ExternalRankings, error) {
	ctx, span := startSpan(ctx, "ncaa.Client.FetchRankings")
	defer span.End()

	raw, err := c.get(ctx, rankingsPath)
	if err != nil {
		return usecase.ExternalRankings{}, fmt.Errorf("fetch rankings: %w", err)
	}

	var envelope rankingsEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return usecase.ExternalRankings{}, fmt.Errorf("%w: decode rankings: %v", usecase.ErrUpstreamTransport, err)
	}

	updated := asString(envelope.Updated)
	return usecase.ExternalRankings{
		Title:       asString(envelope.Title),
		Updated:     updated,
		Rows:        envelope.Data,
		RawPayloads: []rawdata.Payload{buildPayload(rawdata.EntityRankings, rankingsPath, raw, updated, c.now())},
	}, nil
}

// FetchStandings tries the season standings first and the "current"
// variant when that fails.
func (c *Client) FetchStandings(ctx context.Context) (usecase.ExternalDocument, error) {
	ctx, span := startSpan(ctx, "ncaa.Client.FetchStandings")
	defer span.End()

	doc, err := c.fetchDocument(ctx, rawdata.EntityStandings, standingsPath)
	if err == nil {
		return doc, nil
	}
	if ctx.Err() != nil || errors.Is(err, usecase.ErrDependencyUnavailable) {
		return usecase.ExternalDocument{}, fmt.Errorf("fetch standings: %w", err)
	}

	c.logger.WarnContext(ctx, "ncaa standings failed, trying current season path", "error", err)
	doc, fallbackErr := c.fetchDocument(ctx, rawdata.EntityStandings, standingsFallbackPath)
	if fallbackErr != nil {
		return usecase.ExternalDocument{}, fmt.Errorf("fetch standings fallback: %w", fallbackErr)
	}
	return doc, nil
}

// FetchGame returns the game detail document for a numeric game id.
func (c *Client) FetchGame(ctx context.Context, gameID string) (usecase.ExternalDocument, error) {
	gameID = strings.TrimSpace(gameID)
	if !digitsRegex.MatchString(gameID) {
		return usecase.ExternalDocument{}, fmt.Errorf("%w: game id must be numeric", usecase.ErrInvalidInput)
	}

	ctx, span := startSpan(ctx, "ncaa.Client.FetchGame", attribute.String("game.id", gameID))
	defer span.End()

	doc, err := c.fetchDocument(ctx, rawdata.EntityGame, gamePathPrefix+gameID)
	if err != nil {
		return usecase.ExternalDocument{}, fmt.Errorf("fetch game id=%s: %w", gameID, err)
	}
	return doc, nil
}

// fetchDocument returns a body that is verified to be JSON.
func (c *Client) fetchDocument(ctx context.Context, entityType, path string) (usecase.ExternalDocument, error) {
	raw, err := c.get(ctx, path)
	if err != nil {
		return usecase.ExternalDocument{}, err
	}
	if !sonic.Valid(raw) {
		return usecase.ExternalDocument{}, fmt.Errorf("%w: %s returned a non-JSON body", usecase.ErrUpstreamTransport, path)
	}

	return usecase.ExternalDocument{
		Body:        raw,
		RawPayloads: []rawdata.Payload{buildPayload(entityType, path, raw, "", c.now())},
	}, nil
}
