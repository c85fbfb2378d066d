package lightanalysis

import (
	"strings"
	"testing"
)

func TestAnalyze_PositiveEntry(t *testing.T) {
	r := Analyze("今日は楽しかった、友達と映画を見た")

	if r.Emotion != emotionPositive {
		t.Errorf("emotion = %q, want positive sentence", r.Emotion)
	}
	want := "主に人間関係、趣味、日常生活について考えていらっしゃいますね。"
	if r.Themes != want {
		t.Errorf("themes = %q, want %q", r.Themes, want)
	}
	if !strings.Contains(r.Patterns, "簡潔に表現する傾向") {
		t.Errorf("patterns = %q, want short-entry pattern", r.Patterns)
	}
	if r.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s, want %s", r.Confidence, ConfidenceLow)
	}
}

func TestAnalyze_NegativeEntry(t *testing.T) {
	r := Analyze("仕事で疲れた。ストレスでつらい一日だった")
	if r.Emotion != emotionNegative {
		t.Errorf("emotion = %q, want negative sentence", r.Emotion)
	}
	if !strings.Contains(r.Themes, "お仕事") {
		t.Errorf("themes = %q, want work theme", r.Themes)
	}
}

func TestAnalyze_NeutralWhenScoresTie(t *testing.T) {
	r := Analyze("何も書くことがない")
	if r.Emotion != emotionNeutral {
		t.Errorf("emotion = %q, want neutral sentence", r.Emotion)
	}
}

func TestAnalyze_EmptyInputFallsBack(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		r := Analyze(input)
		if r.Emotion != "お疲れさまでした。" {
			t.Errorf("Analyze(%q).Emotion = %q, want fallback", input, r.Emotion)
		}
		if r.Confidence != ConfidenceLow {
			t.Errorf("Analyze(%q).Confidence = %s, want low", input, r.Confidence)
		}
	}
}

func TestAnalyze_Patterns(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"long entry", strings.Repeat("あ", 301), "詳しく書く習慣"},
		{"short entry", "短い", "簡潔に表現する傾向"},
		{"many lines", "一\n二\n三\n四\n五\n六行目もあるくらい長い日記です", "構造化して考える習慣"},
		{"question mark", "どうしてだろう？今日はもやもやした気分が続いたままだった", "自問自答する思考パターン"},
		{"fullwidth exclamation", "やったー！ついに完走できたので達成感でいっぱいだった", "感情表現豊かな表現力"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Analyze(tt.input)
			if !strings.Contains(r.Patterns, tt.want) {
				t.Errorf("patterns = %q, want substring %q", r.Patterns, tt.want)
			}
		})
	}
}

func TestAnalyze_PatternsDefault(t *testing.T) {
	// between 50 and 300 chars, single line, no punctuation markers
	input := strings.Repeat("ん", 120)
	r := Analyze(input)
	if r.Patterns != "自然体で思いを表現されていますね。" {
		t.Errorf("patterns = %q, want default sentence", r.Patterns)
	}
}

func TestAnalyze_FoldsHalfWidthKatakana(t *testing.T) {
	r := Analyze("ｽﾄﾚｽがたまった")
	if r.Emotion != emotionNegative {
		t.Errorf("emotion = %q, half-width katakana should match ストレス", r.Emotion)
	}
}

func TestPositivePoints_Deterministic(t *testing.T) {
	if got, want := positivePoints(5), positiveTemplates[0]; got != want {
		t.Errorf("positivePoints(5) = %q, want %q", got, want)
	}
	// over 200 characters the pool grows to six templates
	if got, want := positivePoints(201), positiveTemplates[3]; got != want {
		t.Errorf("positivePoints(201) = %q, want %q", got, want)
	}
	if got, want := positivePoints(203), positiveTemplateLong; got != want {
		t.Errorf("positivePoints(203) = %q, want %q", got, want)
	}
}

func TestAnalyze_HighConfidence(t *testing.T) {
	input := strings.Repeat("あ", 250) + "嬉しい楽しい幸せ。仕事のあと友達と映画に行った"
	r := Analyze(input)
	if r.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want %s", r.Confidence, ConfidenceHigh)
	}
	if r.Emotion != emotionPositive {
		t.Errorf("emotion = %q, want positive sentence", r.Emotion)
	}
}

func TestFormatForUser(t *testing.T) {
	r := Analyze("今日は楽しかった、友達と映画を見た")
	msg := FormatForUser(r)

	for _, section := range []string{ResultTitle, EmotionSection, ThemesSection, PatternsSection, PositiveSection, ClosingMessage} {
		if !strings.Contains(msg, section) {
			t.Errorf("message missing section %q", section)
		}
	}
	if !strings.Contains(msg, "💻 軽量分析") {
		t.Error("message missing rule-based footer")
	}
	if !strings.Contains(msg, "信頼度: low") {
		t.Errorf("message missing confidence, got footer area: %q", msg)
	}
}

func TestFormatSections(t *testing.T) {
	msg := FormatSections("感情", "テーマ", "パターン", "ポジティブ")
	for _, header := range []string{EmotionSection, ThemesSection, PatternsSection, PositiveSection} {
		if !strings.Contains(msg, header) {
			t.Errorf("section header %q missing:\n%s", header, msg)
		}
	}
	if strings.Contains(msg, ResultTitle) || strings.Contains(msg, ClosingMessage) {
		t.Error("sections block must not carry title or closing framing")
	}
	if strings.Contains(msg, "軽量分析") {
		t.Error("sections block must not carry the rule-based footer")
	}
}
