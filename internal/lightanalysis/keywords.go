package lightanalysis

// Keyword dictionaries for the rule-based analyzer. Hiragana and kanji
// spellings are listed separately because matching is plain substring
// search over the folded text, with no morphological analysis.

var positiveKeywords = []string{
	"うれしい", "たのしい", "よかった", "すてき", "がんばった", "できた",
	"よい", "いい", "よろこび", "しあわせ", "まんぞく", "らく", "やすらか",
	"嬉しい", "楽しい", "良かった", "素敵", "頑張った", "良い", "喜び",
	"幸せ", "満足", "楽", "安らか", "ありがと", "感謝", "おいしい", "美味しい",
	"すばらしい", "素晴らしい", "かんどう", "感動", "げんき", "元気",
}

var negativeKeywords = []string{
	"つらい", "かなしい", "いやだ", "つかれた", "しんどい", "むかつく",
	"いらいら", "ふあん", "しんぱい", "こまった", "だめ", "わるい",
	"辛い", "悲しい", "嫌だ", "疲れた", "イライラ", "不安",
	"心配", "困った", "駄目", "ダメ", "悪い", "ストレス", "きつい",
}

// themeGroups are checked in order; detected labels are joined in this order.
var themeGroups = []struct {
	label    string
	keywords []string
}{
	{"お仕事", []string{"しごと", "仕事", "会社", "かいしゃ", "しょくば", "職場", "プロジェクト", "残業"}},
	{"人間関係", []string{"友達", "ともだち", "かぞく", "家族", "恋人", "彼氏", "彼女", "夫", "妻", "子供"}},
	{"健康", []string{"健康", "けんこう", "体調", "たいちょう", "病気", "びょうき", "医者", "いしゃ"}},
	{"学習", []string{"勉強", "べんきょう", "学校", "がっこう", "テスト", "試験", "しけん"}},
	{"趣味", []string{"趣味", "しゅみ", "ゲーム", "読書", "どくしょ", "映画", "えいが", "音楽"}},
	{"日常生活", []string{"今日", "きょう", "朝", "あさ", "昼", "ひる", "夜", "よる", "買い物", "かいもの"}},
}

// Canned sentences returned by the emotion classifier.
const (
	emotionPositive = "今日はポジティブな気持ちが感じられますね。良い一日だったようです。"
	emotionNegative = "ちょっと大変な一日だったようですが、それでも頑張っているあなたは素晴らしいです。"
	emotionNeutral  = "落ち着いた気持ちで過ごされたようですね。穏やかな一日でした。"
)

// positiveTemplates are picked deterministically by character count so the
// same entry always produces the same message.
var positiveTemplates = []string{
	"きちんと日記を書く習慣を続けているのは素晴らしいことです。",
	"自分の気持ちを言葉にできているのは大きな成長ですね。",
	"今日も一日お疲れさまでした。振り返る時間を大切にしていますね。",
	"思いを文字にすることで心が整理されていると思います。",
	"継続は力なり。日記を書く習慣が素敵です。",
}

const positiveTemplateLong = "しっかりと詳しく書けているのは内省力の表れですね。"
