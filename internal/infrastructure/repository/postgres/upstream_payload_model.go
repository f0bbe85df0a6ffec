package postgres

import (
	"time"

	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
)

const upstreamPayloadsTable = "upstream_payloads"

type upstreamPayloadModel struct {
	FetchID       string    `db:"fetch_id"`
	Source        string    `db:"source"`
	EntityType    string    `db:"entity_type"`
	EntityKey     string    `db:"entity_key"`
	Payload       string    `db:"payload"`
	PayloadHash   string    `db:"payload_hash"`
	SourceUpdated *string   `db:"source_updated"`
	FetchedAt     time.Time `db:"fetched_at"`
}

func upstreamPayloadFromDomain(item rawdata.Payload) upstreamPayloadModel {
	return upstreamPayloadModel{
		FetchID:       item.FetchID,
		Source:        item.Source,
		EntityType:    item.EntityType,
		EntityKey:     item.EntityKey,
		Payload:       item.PayloadJSON,
		PayloadHash:   item.PayloadHash,
		SourceUpdated: nullableString(item.SourceUpdated),
		FetchedAt:     item.FetchedAt.UTC(),
	}
}

func (m upstreamPayloadModel) toDomain() rawdata.Payload {
	out := rawdata.Payload{
		FetchID:     m.FetchID,
		Source:      m.Source,
		EntityType:  m.EntityType,
		EntityKey:   m.EntityKey,
		PayloadJSON: m.Payload,
		PayloadHash: m.PayloadHash,
		FetchedAt:   m.FetchedAt.UTC(),
	}
	if m.SourceUpdated != nil {
		out.SourceUpdated = *m.SourceUpdated
	}
	return out
}
