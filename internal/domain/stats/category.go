package stats

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCategory is returned for category names outside the fixed set.
var ErrInvalidCategory = errors.New("invalid category")

// Category identifies one tracked statistical leaderboard.
type Category string

const (
	CategoryBatting            Category = "batting"
	CategoryHits               Category = "hits"
	CategoryHomeRuns           Category = "homeRuns"
	CategoryOBP                Category = "obp"
	CategorySLG                Category = "slg"
	CategoryERA                Category = "era"
	CategoryStrikeoutsPerSeven Category = "strikeoutsPerSeven"
	CategoryStrikeouts         Category = "strikeouts"
)

const (
	individualStatsPath = "/stats/softball/d1/current/individual/"
	fallbackTitle       = "Statistical Leaders"
)

type categorySpec struct {
	statID int
	title  string
}

var categorySpecs = map[Category]categorySpec{
	CategoryBatting:            {statID: 271, title: "Batting Average"},
	CategoryHits:               {statID: 1088, title: "Hits"},
	CategoryHomeRuns:           {statID: 514, title: "Home Runs"},
	CategoryOBP:                {statID: 510, title: "On-Base Percentage"},
	CategorySLG:                {statID: 343, title: "Slugging Percentage"},
	CategoryERA:                {statID: 276, title: "Earned Run Average"},
	CategoryStrikeoutsPerSeven: {statID: 278, title: "Strikeouts Per Seven Innings"},
	CategoryStrikeouts:         {statID: 539, title: "Strikeouts"},
}

var categoryOrder = []Category{
	CategoryBatting,
	CategoryHits,
	CategoryHomeRuns,
	CategoryOBP,
	CategorySLG,
	CategoryERA,
	CategoryStrikeoutsPerSeven,
	CategoryStrikeouts,
}

// The front-end names the total strikeouts table differently.
var categoryAliases = map[string]Category{
	"strikeoutsTotal": CategoryStrikeouts,
}

// ParseCategory resolves a caller supplied name into a known category.
func ParseCategory(raw string) (Category, error) {
	name := strings.TrimSpace(raw)
	if alias, ok := categoryAliases[name]; ok {
		return alias, nil
	}

	category := Category(name)
	if !category.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
	return category, nil
}

// Categories lists every category in display order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

func (c Category) Valid() bool {
	_, ok := categorySpecs[c]
	return ok
}

// Title returns the display title, or a generic label for unknown categories.
func (c Category) Title() string {
	if spec, ok := categorySpecs[c]; ok {
		return spec.title
	}
	return fallbackTitle
}

// EndpointPath returns the upstream path of the first leaderboard page.
func (c Category) EndpointPath() (string, error) {
	spec, ok := categorySpecs[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, string(c))
	}
	return fmt.Sprintf("%s%d", individualStatsPath, spec.statID), nil
}

func (c Category) String() string {
	return string(c)
}
