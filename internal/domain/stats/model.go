package stats

// Sport is the fixed sport label carried on every leaderboard.
const Sport = "Softball"

// MaxLeaders caps the number of entries returned per leaderboard.
const MaxLeaders = 50

// RawRecord is one upstream leaderboard row. Keys and value types vary by
// category and by season, so nothing is assumed about either.
type RawRecord map[string]any

type Player struct {
	Name      string `json:"name"`
	Position  string `json:"position"`
	ClassYear string `json:"classYear"`
}

type Team struct {
	Name string `json:"name"`
}

// LeaderEntry is the normalized form of one RawRecord.
type LeaderEntry struct {
	Rank            int                `json:"rank"`
	Player          Player             `json:"player"`
	Team            Team               `json:"team"`
	Value           float64            `json:"value"`
	AdditionalStats map[string]float64 `json:"additionalStats"`
}

// Leaderboard is the response contract for one category.
type Leaderboard struct {
	Sport    string        `json:"sport"`
	Category string        `json:"category"`
	Updated  string        `json:"updated"`
	Leaders  []LeaderEntry `json:"leaders"`
}

// CategoryInfo describes a category for discovery listings.
type CategoryInfo struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Path  string `json:"path"`
}
