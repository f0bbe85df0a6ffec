package rawdata

import "context"

type Repository interface {
	UpsertMany(ctx context.Context, items []Payload) error
	ListRecent(ctx context.Context, entityKey string, limit int) ([]Payload, error)
}
