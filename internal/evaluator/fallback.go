package evaluator

import (
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/cqdrill/internal/model"
)

// Notes returned by the rule-based scorer and the short-input fast path.
const (
	FallbackFeedback  = "感情的な反応は関係悪化のリスク。まず事情確認と代替案提示で建設的に進めましょう。"
	FallbackNextDrill = "相手の事情確認→決められる範囲の前進合意→次の連絡時刻、の3点を1文で述べてみてください。"
	ShortFeedback     = "入力が短すぎます。あなたの初動（何を・誰に・いつ）を1〜2文で書いてください。"
	ShortNextDrill    = "相手の事情確認と代替案提示を1文で書いてみましょう。"
)

const (
	baseScore    = 60
	minRunes     = 3
	minFullRunes = 8
)

// NegativeTriggers are anger, blame, neglect and complaint words.
var NegativeTriggers = []string{"怒る", "キレる", "責める", "無視", "放置", "罰する", "文句", "遅い", "あり得ない"}

// PositiveSignals are confirmation, alternative, agreement, deadline, apology
// and follow-up words.
var PositiveSignals = []string{"事情", "確認", "代替", "再調整", "共有", "合意", "期限", "目安", "方針", "謝罪", "連絡"}

// Fallback scores text with fixed lexicon rules. Both lexicons may apply to
// the same text; clamping happens last.
func Fallback(text string) model.FreeTextEvaluation {
	score, contextFit, interpersonal, clarity := baseScore, baseScore, baseScore, baseScore

	if containsAny(text, NegativeTriggers) {
		interpersonal -= 40
		contextFit -= 20
		score -= 30
	}
	if containsAny(text, PositiveSignals) {
		contextFit += 10
		clarity += 10
		score += 10
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minFullRunes {
		clarity -= 20
		score -= 10
	}

	return model.FreeTextEvaluation{
		ScoreTotal: clamp(score),
		Subscores: model.Subscores{
			ContextFit:               clamp(contextFit),
			InterpersonalSensitivity: clamp(interpersonal),
			Clarity:                  clamp(clarity),
		},
		ShortFeedback: FallbackFeedback,
		NextDrill:     FallbackNextDrill,
	}
}

// tooShort reports whether text is below the evaluable minimum.
func tooShort(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < minRunes
}

func shortAnswer() model.FreeTextEvaluation {
	return model.FreeTextEvaluation{
		ShortFeedback: ShortFeedback,
		NextDrill:     ShortNextDrill,
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
