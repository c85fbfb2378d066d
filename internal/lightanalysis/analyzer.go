// Package lightanalysis implements the rule-based diary analyzer used when
// the LLM path is unavailable or too slow. It works on keyword dictionaries
// and simple text statistics, never calls out to the network, and never
// fails: malformed or empty input yields a canned fallback result.
package lightanalysis

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Confidence grades how much signal the analyzer found in the entry.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Result is a complete four-part analysis of one diary entry.
type Result struct {
	Emotion        string
	Themes         string
	Patterns       string
	PositivePoints string
	Confidence     Confidence
	Elapsed        time.Duration
}

// Analyze runs the full rule-based pipeline over one diary entry. The text
// is NFKC-folded and lowercased once up front so half-width katakana and
// full-width latin match the dictionaries.
func Analyze(content string) Result {
	start := time.Now()

	if strings.TrimSpace(content) == "" {
		return fallbackResult(time.Since(start))
	}

	folded := strings.ToLower(norm.NFKC.String(content))
	charCount := utf8.RuneCountInString(content)
	lineCount := strings.Count(content, "\n") + 1

	emotion, posScore, negScore := analyzeEmotion(folded)

	return Result{
		Emotion:        emotion,
		Themes:         analyzeThemes(folded),
		Patterns:       analyzePatterns(folded, charCount, lineCount),
		PositivePoints: positivePoints(charCount),
		Confidence:     confidence(folded, charCount, posScore+negScore),
		Elapsed:        time.Since(start),
	}
}

// analyzeEmotion counts matched positive and negative keywords and picks the
// sentence for the dominant side. The raw scores feed the confidence grade.
func analyzeEmotion(folded string) (sentence string, posScore, negScore int) {
	for _, kw := range positiveKeywords {
		if strings.Contains(folded, kw) {
			posScore++
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(folded, kw) {
			negScore++
		}
	}

	switch {
	case posScore > negScore:
		sentence = emotionPositive
	case negScore > posScore:
		sentence = emotionNegative
	default:
		sentence = emotionNeutral
	}
	return sentence, posScore, negScore
}

func analyzeThemes(folded string) string {
	var detected []string
	for _, g := range themeGroups {
		for _, kw := range g.keywords {
			if strings.Contains(folded, kw) {
				detected = append(detected, g.label)
				break
			}
		}
	}
	if len(detected) == 0 {
		return "日常の出来事について思いを巡らせていますね。"
	}
	return "主に" + strings.Join(detected, "、") + "について考えていらっしゃいますね。"
}

func analyzePatterns(folded string, charCount, lineCount int) string {
	var patterns []string

	if charCount > 300 {
		patterns = append(patterns, "詳しく書く習慣")
	} else if charCount < 50 {
		patterns = append(patterns, "簡潔に表現する傾向")
	}
	if lineCount > 5 {
		patterns = append(patterns, "構造化して考える習慣")
	}
	if strings.ContainsAny(folded, "？?") {
		patterns = append(patterns, "自問自答する思考パターン")
	}
	if strings.ContainsAny(folded, "！!") {
		patterns = append(patterns, "感情表現豊かな表現力")
	}

	if len(patterns) == 0 {
		return "自然体で思いを表現されていますね。"
	}
	return strings.Join(patterns, "、") + "が見られます。"
}

// positivePoints picks a template by character count so the choice is
// deterministic per entry. Entries over 200 characters unlock one extra
// template at the end of the pool.
func positivePoints(charCount int) string {
	templates := positiveTemplates
	if charCount > 200 {
		templates = append(append([]string{}, positiveTemplates...), positiveTemplateLong)
	}
	return templates[charCount%len(templates)]
}

// confidence grades the result: one point each for length over 100 and 200
// characters, and for keyword match counts over 2 and 5 across every
// dictionary. Three points or more is high, two is medium.
func confidence(folded string, charCount, emotionMatches int) Confidence {
	score := 0
	if charCount > 100 {
		score++
	}
	if charCount > 200 {
		score++
	}

	matches := emotionMatches
	for _, g := range themeGroups {
		for _, kw := range g.keywords {
			if strings.Contains(folded, kw) {
				matches++
			}
		}
	}
	if matches > 2 {
		score++
	}
	if matches > 5 {
		score++
	}

	switch {
	case score >= 3:
		return ConfidenceHigh
	case score >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func fallbackResult(elapsed time.Duration) Result {
	return Result{
		Emotion:        "お疲れさまでした。",
		Themes:         "日常の出来事について考えていらっしゃいますね。",
		Patterns:       "自然体で思いを表現されています。",
		PositivePoints: "今日も日記を書く時間を作れたのは素晴らしいことです。",
		Confidence:     ConfidenceLow,
	}
}
