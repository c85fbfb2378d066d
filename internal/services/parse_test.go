package services

import (
	"strings"
	"testing"
)

const validAnalysisJSON = `{
  "emotion": "前向きな気持ちが伝わってきます",
  "themes": "仕事と家族",
  "patterns": "朝型の生活リズム",
  "positive_points": "継続して日記を書けています"
}`

func TestParseAnalysisResponse_FencedJSON(t *testing.T) {
	raw := "分析結果です。\n```json\n" + validAnalysisJSON + "\n```\n以上です。"
	f, ok := ParseAnalysisResponse(raw)
	if !ok {
		t.Fatal("expected successful parse")
	}
	if f.Emotion != "前向きな気持ちが伝わってきます" {
		t.Errorf("emotion = %q", f.Emotion)
	}
	if f.PositivePoints != "継続して日記を書けています" {
		t.Errorf("positive points = %q", f.PositivePoints)
	}
}

func TestParseAnalysisResponse_BareFence(t *testing.T) {
	raw := "```\n" + validAnalysisJSON + "\n```"
	if _, ok := ParseAnalysisResponse(raw); !ok {
		t.Fatal("expected successful parse from bare fence")
	}
}

func TestParseAnalysisResponse_RawJSON(t *testing.T) {
	if _, ok := ParseAnalysisResponse(validAnalysisJSON); !ok {
		t.Fatal("expected successful parse from unfenced JSON")
	}
}

func TestParseAnalysisResponse_Truncation(t *testing.T) {
	long := strings.Repeat("あ", 200)
	raw := `{"emotion":"` + long + `","themes":"t","patterns":"p","positive_points":"` + long + `"}`
	f, ok := ParseAnalysisResponse(raw)
	if !ok {
		t.Fatal("expected successful parse")
	}
	if got := len([]rune(f.Emotion)); got != 100 {
		t.Errorf("emotion runes = %d, want 100", got)
	}
	if got := len([]rune(f.PositivePoints)); got != 150 {
		t.Errorf("positive points runes = %d, want 150", got)
	}
}

func TestParseAnalysisResponse_PartialFields(t *testing.T) {
	raw := `{"emotion":"穏やか","themes":"日常"}`
	f, ok := ParseAnalysisResponse(raw)
	if !ok {
		t.Fatal("partial document with emotion and themes should be accepted")
	}
	if f.Patterns != parseErrorPlaceholder {
		t.Errorf("patterns = %q, want placeholder", f.Patterns)
	}
	if f.PositivePoints != parseErrorPositive {
		t.Errorf("positive points = %q, want placeholder", f.PositivePoints)
	}
}

func TestParseAnalysisResponse_RepairsTruncatedJSON(t *testing.T) {
	// response cut off mid-way through the third field
	raw := `{"emotion":"穏やかな一日","themes":"家族との時間","patterns":"夜にまとめて書`
	f, ok := ParseAnalysisResponse(raw)
	if !ok {
		t.Fatal("truncated document should be repaired")
	}
	if f.Emotion != "穏やかな一日" || f.Themes != "家族との時間" {
		t.Errorf("repaired fields = %+v", f)
	}
}

func TestParseAnalysisResponse_Fallback(t *testing.T) {
	for _, raw := range []string{"", "ただの文章の応答です。", `{"mood":"good"}`} {
		f, ok := ParseAnalysisResponse(raw)
		if ok {
			t.Errorf("ParseAnalysisResponse(%q) ok = true, want fallback", raw)
		}
		if f.Emotion != parseErrorPlaceholder || f.PositivePoints != parseErrorPositive {
			t.Errorf("fallback fields = %+v", f)
		}
	}
}
