package rawdata

import "time"

// Entity types archived from the stats provider.
const (
	EntityStatsPage = "stats_page"
	EntityRankings  = "rankings"
	EntityStandings = "standings"
	EntityGame      = "game"
)

// Payload is one upstream response body kept verbatim for auditing.
type Payload struct {
	FetchID       string
	Source        string
	EntityType    string
	EntityKey     string
	PayloadJSON   string
	PayloadHash   string
	SourceUpdated string
	FetchedAt     time.Time
}
