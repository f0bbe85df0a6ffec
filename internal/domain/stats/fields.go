package stats

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// leadingNumberRegex accepts the numeric prefix of a cell such as "12 (T)".
var leadingNumberRegex = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

type fieldKeys []string

// recordView resolves field names against a RawRecord: exact key first,
// then a case and whitespace insensitive match.
type recordView struct {
	raw    RawRecord
	folded map[string]any
}

func newRecordView(raw RawRecord) recordView {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	// Colliding folded keys resolve to the lexically first original key.
	sort.Strings(keys)

	folded := make(map[string]any, len(raw))
	for _, key := range keys {
		foldedKey := foldKey(key)
		if _, exists := folded[foldedKey]; exists {
			continue
		}
		folded[foldedKey] = raw[key]
	}
	return recordView{raw: raw, folded: folded}
}

func foldKey(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

func (v recordView) lookup(key string) (any, bool) {
	if value, ok := v.raw[key]; ok && value != nil {
		return value, true
	}
	value, ok := v.folded[foldKey(key)]
	return value, ok && value != nil
}

// number returns the first present and parsable value among keys.
func (v recordView) number(keys fieldKeys) (float64, bool) {
	for _, key := range keys {
		raw, ok := v.lookup(key)
		if !ok {
			continue
		}
		if value, ok := parseNumber(raw); ok {
			return value, true
		}
	}
	return 0, false
}

// count is number truncated toward zero.
func (v recordView) count(keys fieldKeys) (float64, bool) {
	value, ok := v.number(keys)
	if !ok {
		return 0, false
	}
	return math.Trunc(value), true
}

// text returns the first non-empty value among keys as a trimmed string.
func (v recordView) text(keys fieldKeys) string {
	for _, key := range keys {
		raw, ok := v.lookup(key)
		if !ok {
			continue
		}
		if value := asText(raw); value != "" {
			return value
		}
	}
	return ""
}

func asText(raw any) string {
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	default:
		return ""
	}
}

func parseNumber(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return finite(value)
	case float32:
		return finite(float64(value))
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, false
		}
		return finite(parsed)
	case string:
		return parseNumericText(value)
	default:
		return 0, false
	}
}

func parseNumericText(raw string) (float64, bool) {
	text := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	match := leadingNumberRegex.FindString(text)
	if match == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return finite(parsed)
}

func finite(value float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}

// inningsPitched converts box score notation, where .1 and .2 are thirds of
// an inning, into a real number of innings.
func inningsPitched(notation float64) float64 {
	whole := math.Trunc(notation)
	switch math.Round((notation - whole) * 10) {
	case 1:
		return whole + 1.0/3.0
	case 2:
		return whole + 2.0/3.0
	default:
		return notation
	}
}
