package stats

import (
	"strings"
	"time"
)

// UpdatedDateLayout formats the fallback "updated" stamp as M/D/YYYY.
const UpdatedDateLayout = "1/2/2006"

// Assemble builds the leaderboard for category from the combined page records.
// Records keep upstream order; only the first MaxLeaders are normalized.
func Assemble(category Category, records []RawRecord, updated string, now time.Time) Leaderboard {
	categoryRule, ok := rules[category]
	if !ok {
		categoryRule = fallbackRule
	}

	if len(records) > MaxLeaders {
		records = records[:MaxLeaders]
	}

	leaders := make([]LeaderEntry, 0, len(records))
	for idx, record := range records {
		leaders = append(leaders, normalizeWith(categoryRule, record, idx))
	}

	updated = strings.TrimSpace(updated)
	if updated == "" {
		updated = now.Format(UpdatedDateLayout)
	}

	return Leaderboard{
		Sport:    Sport,
		Category: category.Title(),
		Updated:  updated,
		Leaders:  leaders,
	}
}

// DescribeCategories returns discovery metadata for every category.
func DescribeCategories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(categoryOrder))
	for _, category := range categoryOrder {
		path, _ := category.EndpointPath()
		out = append(out, CategoryInfo{
			Name:  category.String(),
			Title: category.Title(),
			Path:  path,
		})
	}
	return out
}
