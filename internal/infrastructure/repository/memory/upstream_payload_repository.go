package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
)

// UpstreamPayloadRepository keeps archived payloads in process. It follows
// the same conflict rule as the postgres table.
type UpstreamPayloadRepository struct {
	mu    sync.RWMutex
	items map[payloadKey]rawdata.Payload
}

type payloadKey struct {
	source    string
	entityKey string
	hash      string
}

func NewUpstreamPayloadRepository() *UpstreamPayloadRepository {
	return &UpstreamPayloadRepository{items: make(map[payloadKey]rawdata.Payload)}
}

func (r *UpstreamPayloadRepository) UpsertMany(_ context.Context, items []rawdata.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		key := payloadKey{source: item.Source, entityKey: item.EntityKey, hash: item.PayloadHash}
		if existing, ok := r.items[key]; ok {
			existing.FetchID = item.FetchID
			existing.SourceUpdated = item.SourceUpdated
			existing.FetchedAt = item.FetchedAt
			r.items[key] = existing
			continue
		}
		r.items[key] = item
	}
	return nil
}

func (r *UpstreamPayloadRepository) ListRecent(_ context.Context, entityKey string, limit int) ([]rawdata.Payload, error) {
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	out := make([]rawdata.Payload, 0)
	for key, item := range r.items {
		if key.entityKey == entityKey {
			out = append(out, item)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FetchedAt.Equal(out[j].FetchedAt) {
			return out[i].PayloadHash < out[j].PayloadHash
		}
		return out[i].FetchedAt.After(out[j].FetchedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
