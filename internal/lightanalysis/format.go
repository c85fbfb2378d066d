package lightanalysis

import (
	"fmt"
	"strings"
)

// Section headers shared by every analysis message sent to users, LLM
// generated or rule based, so both paths render identically in the chat.
const (
	ResultTitle     = "📝 日記分析結果"
	EmotionSection  = "🎭 **感情分析**"
	ThemesSection   = "🎯 **主なテーマ**"
	PatternsSection = "🔄 **行動パターン**"
	PositiveSection = "✨ **ポジティブポイント**"
	ClosingMessage  = "今日もお疲れさまでした！明日も素敵な一日にしましょう 🌟"
)

// FormatForUser renders a result as the chat message body, including the
// processing-time footer that marks it as a rule-based analysis.
func FormatForUser(r Result) string {
	return strings.Join([]string{
		ResultTitle,
		"",
		FormatSections(r.Emotion, r.Themes, r.Patterns, r.PositivePoints),
		"",
		ClosingMessage,
		"",
		fmt.Sprintf("💻 軽量分析 (%.1fms, 信頼度: %s)", float64(r.Elapsed.Microseconds())/1000, r.Confidence),
	}, "\n")
}

// FormatSections renders the four labeled analysis sections without title or
// closing lines. Both the rule-based message and the AI follow-up wrap this
// block in their own framing.
func FormatSections(emotion, themes, patterns, positive string) string {
	return strings.Join([]string{
		EmotionSection,
		emotion,
		"",
		ThemesSection,
		themes,
		"",
		PatternsSection,
		patterns,
		"",
		PositiveSection,
		positive,
	}, "\n")
}
