// Package services – LLM response parsing
//
// The analysis prompt asks the model for a four-field JSON document, but
// models wrap it in markdown fences, truncate it mid-string, or answer in
// prose. Parsing therefore runs best effort: fenced block extraction, a
// repair pass for truncated JSON, partial acceptance, and finally a fixed
// fallback. A user always gets a well-formed analysis.
package services

import (
	"encoding/json"
	"regexp"
	"strings"
)

// AnalysisFields is the structured four-part analysis stored and shown to
// users. Fields are capped at 100/100/100/150 runes.
type AnalysisFields struct {
	Emotion        string `json:"emotion"`
	Themes         string `json:"themes"`
	Patterns       string `json:"patterns"`
	PositivePoints string `json:"positive_points"`
}

const (
	fieldLimit         = 100
	positiveFieldLimit = 150

	parseErrorPlaceholder = "分析処理中にエラーが発生しました"
	parseErrorPositive    = "お疲れさまでした。明日も頑張りましょう！"
)

var (
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareFenceRe = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ParseAnalysisResponse extracts AnalysisFields from a raw model response.
// The boolean reports whether the response itself yielded the fields; false
// means the fixed fallback was substituted.
func ParseAnalysisResponse(raw string) (AnalysisFields, bool) {
	candidate := extractJSONBlock(raw)

	if f, ok := decodeFields(candidate); ok {
		return truncateFields(f), true
	}
	if f, ok := decodeFields(repairJSON(candidate)); ok {
		return truncateFields(f), true
	}
	return fallbackFields(), false
}

// extractJSONBlock prefers a ```json fence, then any fence, then the raw
// text trimmed.
func extractJSONBlock(raw string) string {
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareFenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// decodeFields unmarshals and validates a candidate document. Partial
// documents are accepted when at least emotion or themes decoded; the
// missing fields get placeholders.
func decodeFields(candidate string) (AnalysisFields, bool) {
	var f AnalysisFields
	if err := json.Unmarshal([]byte(candidate), &f); err != nil {
		return AnalysisFields{}, false
	}

	if f.Emotion != "" && f.Themes != "" && f.Patterns != "" && f.PositivePoints != "" {
		return f, true
	}
	if f.Emotion == "" && f.Themes == "" {
		return AnalysisFields{}, false
	}

	if f.Emotion == "" {
		f.Emotion = parseErrorPlaceholder
	}
	if f.Themes == "" {
		f.Themes = parseErrorPlaceholder
	}
	if f.Patterns == "" {
		f.Patterns = parseErrorPlaceholder
	}
	if f.PositivePoints == "" {
		f.PositivePoints = parseErrorPositive
	}
	return f, true
}

// repairJSON salvages a document cut off mid-value: drop everything after
// the last complete field (the last comma) and close the object, or close
// an unterminated string value directly.
func repairJSON(candidate string) string {
	if !strings.HasPrefix(candidate, "{") || strings.HasSuffix(candidate, "}") {
		return candidate
	}
	if i := strings.LastIndex(candidate, ","); i > 0 {
		return candidate[:i] + "}"
	}
	return candidate + `"}`
}

func truncateFields(f AnalysisFields) AnalysisFields {
	return AnalysisFields{
		Emotion:        truncateRunes(f.Emotion, fieldLimit),
		Themes:         truncateRunes(f.Themes, fieldLimit),
		Patterns:       truncateRunes(f.Patterns, fieldLimit),
		PositivePoints: truncateRunes(f.PositivePoints, positiveFieldLimit),
	}
}

func fallbackFields() AnalysisFields {
	return AnalysisFields{
		Emotion:        parseErrorPlaceholder,
		Themes:         parseErrorPlaceholder,
		Patterns:       parseErrorPlaceholder,
		PositivePoints: parseErrorPositive,
	}
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
