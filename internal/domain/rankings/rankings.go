package rankings

import (
	"slices"
	"strings"
	"time"
)

const (
	// DefaultTitle is used when the upstream poll omits its title.
	DefaultTitle = "NCAA Division I Softball Rankings"

	CollegeField      = "COLLEGE"
	PreviousRankField = "PREVIOUS RANK"

	updatedDateLayout = "1/2/2006"
)

var (
	collegeKeys      = []string{"COLLEGE", "SCHOOL", "TEAM"}
	previousRankKeys = []string{"PREVIOUS RANK", "PREVIOUS"}
)

// Row is one poll entry. Every upstream field is kept; COLLEGE and
// PREVIOUS RANK are always present after normalization.
type Row map[string]any

// Rankings is the response contract for the team poll.
type Rankings struct {
	Title   string `json:"title"`
	Updated string `json:"updated"`
	Data    []Row  `json:"data"`
}

// Build wraps normalized rows with poll metadata.
func Build(title, updated string, rawRows any, now time.Time) Rankings {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	updated = strings.TrimSpace(updated)
	if updated == "" {
		updated = now.Format(updatedDateLayout)
	}

	return Rankings{
		Title:   title,
		Updated: updated,
		Data:    NormalizeRows(rawRows),
	}
}

// NormalizeRows trims field names and fills the canonical college and
// previous rank columns. Anything other than a list yields an empty slice.
func NormalizeRows(raw any) []Row {
	var items []any
	switch value := raw.(type) {
	case []any:
		items = value
	case []map[string]any:
		items = make([]any, 0, len(value))
		for _, item := range value {
			items = append(items, item)
		}
	case []Row:
		items = make([]any, 0, len(value))
		for _, item := range value {
			items = append(items, map[string]any(item))
		}
	default:
		return []Row{}
	}

	out := make([]Row, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, normalizeRow(fields))
	}
	return out
}

func normalizeRow(fields map[string]any) Row {
	row := make(Row, len(fields)+2)

	// Keys that are already trimmed win over padded duplicates.
	for key, value := range fields {
		if strings.TrimSpace(key) == key {
			row[key] = value
		}
	}
	// Among padded duplicates the lexically smallest raw key wins.
	padded := make([]string, 0)
	for key := range fields {
		if strings.TrimSpace(key) != key {
			padded = append(padded, key)
		}
	}
	slices.Sort(padded)
	for _, key := range padded {
		trimmed := strings.TrimSpace(key)
		if _, exists := row[trimmed]; !exists {
			row[trimmed] = fields[key]
		}
	}

	row[CollegeField] = firstNonEmpty(row, collegeKeys)
	row[PreviousRankField] = firstNonEmpty(row, previousRankKeys)
	return row
}

func firstNonEmpty(row Row, keys []string) any {
	for _, key := range keys {
		value, ok := row[key]
		if !ok || isEmpty(value) {
			continue
		}
		return value
	}
	return ""
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
