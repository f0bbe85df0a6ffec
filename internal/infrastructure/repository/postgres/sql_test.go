package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	qb "github.com/riskibarqy/softball-stats/internal/platform/querybuilder"
)

func TestNullableString(t *testing.T) {
	if got := nullableString("  "); got != nil {
		t.Fatalf("expected nil for blank string, got %q", *got)
	}
	if got := nullableString(" 04/30/2026 "); got == nil || *got != "04/30/2026" {
		t.Fatalf("unexpected nullable string: %v", got)
	}
}

func TestDedupePayloads_KeepsLastPerConflictKey(t *testing.T) {
	fetchedAt := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	items := []rawdata.Payload{
		{FetchID: "f1", Source: "ncaa", EntityKey: "/p1", PayloadHash: "h1", FetchedAt: fetchedAt},
		{FetchID: "f1", Source: "ncaa", EntityKey: "/p2", PayloadHash: "h2", FetchedAt: fetchedAt},
		{FetchID: "f2", Source: "ncaa", EntityKey: "/p1", PayloadHash: "h1", FetchedAt: fetchedAt},
	}

	got := dedupePayloads(items)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].EntityKey != "/p1" || got[0].FetchID != "f2" {
		t.Fatalf("expected last /p1 copy in first slot, got %+v", got[0])
	}
}

func TestUpsertQueryShape(t *testing.T) {
	rows := dedupePayloads([]rawdata.Payload{
		{Source: "ncaa", EntityType: rawdata.EntityRankings, EntityKey: "/rankings/softball/d1", PayloadJSON: `{}`, PayloadHash: "h"},
	})

	query, args, err := qb.InsertModels(upstreamPayloadsTable, rows, upsertUpstreamPayloads.SQL())
	if err != nil {
		t.Fatalf("build upsert: %v", err)
	}
	if !strings.HasPrefix(query, "INSERT INTO upstream_payloads (fetch_id, source, entity_type, entity_key, payload, payload_hash, source_updated, fetched_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (source, entity_key, payload_hash) DO UPDATE SET fetch_id = EXCLUDED.fetch_id") {
		t.Fatalf("unexpected upsert query: %s", query)
	}
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(args))
	}
}
