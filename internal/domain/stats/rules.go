package stats

import (
	"fmt"
	"math"
)

var (
	rankKeys      = fieldKeys{"Rank", "rank", "RANK"}
	nameKeys      = fieldKeys{"Name", "Player"}
	positionKeys  = fieldKeys{"Position", "POS", "Pos"}
	classYearKeys = fieldKeys{"Cl", "Class", "Yr"}
	teamKeys      = fieldKeys{"Team", "School"}
)

type statField struct {
	name string
	keys fieldKeys
	// rate fields keep their fraction, everything else is a whole count.
	rate bool
	// optional fields are omitted when no source key is present.
	optional bool
}

func (f statField) extract(view recordView) (float64, bool) {
	if f.rate {
		return view.number(f.keys)
	}
	return view.count(f.keys)
}

// rule describes how one category maps onto a LeaderEntry.
type rule struct {
	value     fieldKeys
	valueRate bool
	stats     []statField
	// derive may fill derived supporting stats and returns the headline
	// value given the direct reading, if any.
	derive func(view recordView, stats map[string]float64, direct float64, hasDirect bool) float64
}

var (
	gamesField       = statField{name: "g", keys: fieldKeys{"G"}}
	atBatsField      = statField{name: "ab", keys: fieldKeys{"AB"}}
	hitsField        = statField{name: "h", keys: fieldKeys{"H"}}
	appearancesField = statField{name: "app", keys: fieldKeys{"App", "APP"}}
	inningsField     = statField{name: "ip", keys: fieldKeys{"IP"}, rate: true}
	strikeoutsField  = statField{name: "so", keys: fieldKeys{"SO"}}
)

var rules = map[Category]rule{
	CategoryBatting: {
		value:     fieldKeys{"BA", "AVG"},
		valueRate: true,
		stats:     []statField{gamesField, atBatsField, hitsField},
	},
	CategoryHits: {
		value: fieldKeys{"H"},
		stats: []statField{gamesField},
	},
	CategoryHomeRuns: {
		value: fieldKeys{"HR"},
		stats: []statField{gamesField, {name: "hr", keys: fieldKeys{"HR"}}},
		derive: func(_ recordView, stats map[string]float64, direct float64, _ bool) float64 {
			stats["hr_g"] = 0
			if games := stats["g"]; games > 0 {
				stats["hr_g"] = roundTo(stats["hr"]/games, 2)
			}
			return direct
		},
	},
	CategoryOBP: {
		value:     fieldKeys{"PCT", "OBP", "OB%"},
		valueRate: true,
		stats: []statField{
			gamesField,
			atBatsField,
			hitsField,
			{name: "bb", keys: fieldKeys{"BB"}},
			{name: "hbp", keys: fieldKeys{"HBP"}},
			{name: "sf", keys: fieldKeys{"SF"}},
			{name: "sh", keys: fieldKeys{"SH"}},
		},
		derive: deriveOnBasePercentage,
	},
	CategorySLG: {
		value:     fieldKeys{"SLG PCT", "SLG"},
		valueRate: true,
		stats:     []statField{gamesField, atBatsField, {name: "tb", keys: fieldKeys{"TB"}}},
		derive:    deriveSlugging,
	},
	CategoryERA: {
		value:     fieldKeys{"ERA"},
		valueRate: true,
		stats: []statField{
			appearancesField,
			inningsField,
			{name: "er", keys: fieldKeys{"ER"}},
			{name: "r", keys: fieldKeys{"R"}, optional: true},
		},
	},
	CategoryStrikeoutsPerSeven: {
		value:     fieldKeys{"K/7", "K7"},
		valueRate: true,
		stats:     []statField{appearancesField, inningsField, strikeoutsField},
		derive: func(_ recordView, stats map[string]float64, direct float64, hasDirect bool) float64 {
			if hasDirect {
				return direct
			}
			innings := inningsPitched(stats["ip"])
			if innings <= 0 {
				return 0
			}
			return roundTo(stats["so"]*7/innings, 2)
		},
	},
	CategoryStrikeouts: {
		value: fieldKeys{"SO"},
		stats: []statField{appearancesField, strikeoutsField},
	},
}

// fallbackRule keeps leaderboards for unmapped categories readable.
var fallbackRule = rule{
	value:     fieldKeys{"Value"},
	valueRate: true,
	stats: []statField{
		{name: "g", keys: gamesField.keys, optional: true},
		{name: "ab", keys: atBatsField.keys, optional: true},
		{name: "h", keys: hitsField.keys, optional: true},
	},
}

// Components win over the direct PCT column whenever the denominator is known.
func deriveOnBasePercentage(_ recordView, stats map[string]float64, direct float64, hasDirect bool) float64 {
	onBase := stats["h"] + stats["bb"] + stats["hbp"]
	chances := stats["ab"] + stats["bb"] + stats["hbp"] + stats["sf"]
	if chances > 0 {
		return roundTo(onBase/chances, 3)
	}
	if hasDirect {
		return direct
	}
	return 0
}

func deriveSlugging(view recordView, stats map[string]float64, direct float64, hasDirect bool) float64 {
	if _, ok := view.count(fieldKeys{"TB"}); !ok {
		hits, _ := view.count(fieldKeys{"H"})
		doubles, _ := view.count(fieldKeys{"2B"})
		triples, _ := view.count(fieldKeys{"3B"})
		homeRuns, _ := view.count(fieldKeys{"HR"})
		stats["tb"] = hits + doubles + 2*triples + 3*homeRuns
	}
	if hasDirect {
		return direct
	}
	if atBats := stats["ab"]; atBats > 0 {
		return roundTo(stats["tb"]/atBats, 3)
	}
	return 0
}

// Normalize converts one upstream record into a LeaderEntry. position is the
// zero-based index of the record within the combined page list.
func Normalize(record RawRecord, category Category, position int) (LeaderEntry, error) {
	categoryRule, ok := rules[category]
	if !ok {
		return LeaderEntry{}, fmt.Errorf("%w: %q", ErrInvalidCategory, string(category))
	}
	return normalizeWith(categoryRule, record, position), nil
}

func normalizeWith(categoryRule rule, record RawRecord, position int) LeaderEntry {
	view := newRecordView(record)

	rank := position + 1
	if parsed, ok := view.count(rankKeys); ok && parsed >= 1 && parsed <= math.MaxInt32 {
		rank = int(parsed)
	}

	additional := make(map[string]float64, len(categoryRule.stats)+1)
	for _, field := range categoryRule.stats {
		value, ok := field.extract(view)
		if !ok && field.optional {
			continue
		}
		additional[field.name] = value
	}

	var (
		direct    float64
		hasDirect bool
	)
	if categoryRule.valueRate {
		direct, hasDirect = view.number(categoryRule.value)
	} else {
		direct, hasDirect = view.count(categoryRule.value)
	}

	value := direct
	if categoryRule.derive != nil {
		value = categoryRule.derive(view, additional, direct, hasDirect)
	}

	return LeaderEntry{
		Rank: rank,
		Player: Player{
			Name:      view.text(nameKeys),
			Position:  view.text(positionKeys),
			ClassYear: view.text(classYearKeys),
		},
		Team:            Team{Name: view.text(teamKeys)},
		Value:           value,
		AdditionalStats: additional,
	}
}
