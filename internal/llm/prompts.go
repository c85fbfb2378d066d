package llm

import (
	"fmt"
	"strings"
)

// Prefixes shared between the analysis prompt and the follow-up messages.
const (
	HistoryPrefix = "【過去7日間の傾向】"
	DiaryPrefix   = "【本日の日記】"
)

// analysisSystemPrompt instructs the model to answer with the four-field
// JSON document the response parser expects. Field length limits here match
// the truncation the parser applies.
const analysisSystemPrompt = `あなたはユーザーの日記を分析し、心理的サポートを提供するAIアシスタントです。

日記の内容を読み、以下の4つの観点から分析を行い、JSON形式で構造化された結果を返してください：

1. emotion: 現在の感情状態と感情の変化（100文字以内）
2. themes: 主要なテーマや思考パターン（100文字以内）
3. patterns: 行動パターンや習慣の特徴（100文字以内）
4. positive_points: ポジティブな点・成長の兆し・励ましのメッセージ（150文字以内）

必ず以下のJSON形式で回答してください：
{
  "emotion": "感情分析の結果",
  "themes": "主要テーマの分析",
  "patterns": "パターン分析の結果",
  "positive_points": "ポジティブな点と励ましのメッセージ"
}

親しみやすく温かみのある文体で、ユーザーに寄り添うような分析を心がけてください。`

const summarySystemPrompt = `あなたは日記要約の専門家です。過去7日間の日記投稿を分析し、感情傾向・主要テーマ・思考パターン・成長ポイントを150文字程度で簡潔に要約してください。

要約には以下の要素を含めてください：
- 主な感情傾向（ポジティブ/ネガティブ/変化）
- 繰り返し言及されるテーマや関心事
- 行動パターンや思考の特徴
- 成長や変化の兆し

簡潔で具体的な要約を作成してください。`

// AnalysisMessages builds the conversation for one diary analysis. The
// history summary, when present, precedes the entry in the user prompt.
func AnalysisMessages(entry, historySummary string) []Message {
	var b strings.Builder
	if historySummary != "" {
		b.WriteString(HistoryPrefix)
		b.WriteString("\n")
		b.WriteString(historySummary)
		b.WriteString("\n\n")
	}
	b.WriteString(DiaryPrefix)
	b.WriteString("\n")
	b.WriteString(entry)

	return []Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// SummaryMessages builds the conversation for a history summary over the
// given entry contents, numbered in chronological order.
func SummaryMessages(contents []string) []Message {
	numbered := make([]string, len(contents))
	for i, c := range contents {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, c)
	}

	userPrompt := "以下の過去7日間の日記投稿を要約してください：\n\n" + strings.Join(numbered, "\n\n")
	return []Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: userPrompt},
	}
}
