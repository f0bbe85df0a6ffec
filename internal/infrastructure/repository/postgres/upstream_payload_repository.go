package postgres

import (
	"context"
	"fmt"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	qb "github.com/riskibarqy/softball-stats/internal/platform/querybuilder"
)

// Rows per INSERT statement; all batches share one transaction.
const upsertBatchSize = 16

// Re-fetching an unchanged body only moves its last-seen markers.
var upsertUpstreamPayloads = qb.Upsert{
	ConflictColumns: []string{"source", "entity_key", "payload_hash"},
	UpdateColumns:   []string{"fetch_id", "source_updated", "fetched_at"},
}

type UpstreamPayloadRepository struct {
	db *sqlx.DB
}

func NewUpstreamPayloadRepository(db *sqlx.DB) *UpstreamPayloadRepository {
	return &UpstreamPayloadRepository{db: db}
}

func (r *UpstreamPayloadRepository) UpsertMany(ctx context.Context, items []rawdata.Payload) error {
	rows := dedupePayloads(items)
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert upstream payloads: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	suffix := upsertUpstreamPayloads.SQL()
	for i, batch := range qb.Batches(rows, upsertBatchSize) {
		query, args, err := qb.InsertModels(upstreamPayloadsTable, batch, suffix)
		if err != nil {
			return crerr.Wrapf(err, "build upsert upstream payloads batch %d", i)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return crerr.Wrapf(err, "upsert %d upstream payloads batch %d", len(batch), i)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert upstream payloads tx: %w", err)
	}

	return nil
}

func (r *UpstreamPayloadRepository) ListRecent(ctx context.Context, entityKey string, limit int) ([]rawdata.Payload, error) {
	if limit <= 0 {
		limit = 20
	}

	query, args, err := qb.Select(qb.Columns(upstreamPayloadModel{})...).
		From(upstreamPayloadsTable).
		Where(qb.Eq("entity_key", entityKey)).
		OrderBy("fetched_at DESC", "id DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, crerr.Wrap(err, "build list upstream payloads query")
	}

	var rows []upstreamPayloadModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, crerr.Wrapf(err, "list upstream payloads key=%s", entityKey)
	}

	out := make([]rawdata.Payload, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// dedupePayloads keeps the last copy of each conflict key. Postgres rejects
// an upsert that touches the same row twice in one statement.
func dedupePayloads(items []rawdata.Payload) []upstreamPayloadModel {
	type conflictKey struct{ source, entityKey, hash string }

	index := make(map[conflictKey]int, len(items))
	out := make([]upstreamPayloadModel, 0, len(items))
	for _, item := range items {
		key := conflictKey{item.Source, item.EntityKey, item.PayloadHash}
		if pos, ok := index[key]; ok {
			out[pos] = upstreamPayloadFromDomain(item)
			continue
		}
		index[key] = len(out)
		out = append(out, upstreamPayloadFromDomain(item))
	}
	return out
}
