package evaluator

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/pavelanni/cqdrill/internal/model"
)

// Default notes substituted when a model response leaves them empty.
const (
	DefaultFeedback      = "改善点を1つ具体化しましょう。"
	DefaultNextDrill     = "事情確認と代替案提示を1文で書いてみてください。"
	AliasDefaultFeedback = "要点をもう少し具体的に書いてください。"
	AliasDefaultDrill    = "相手の事情確認と対応方針を1文でまとめてみましょう。"
)

// aliasKeys lists, per output field, the keys read from a response that does
// not use the primary shape. The first truthy value wins.
var aliasKeys = struct {
	score, contextFit, interpersonal, clarity, feedback, next []string
}{
	score:         []string{"score"},
	contextFit:    []string{"context", "context_fit"},
	interpersonal: []string{"empathy", "interpersonal_sensitivity"},
	clarity:       []string{"clarity"},
	feedback:      []string{"comment", "short_feedback"},
	next:          []string{"next", "next_drill"},
}

// Normalize maps a decoded model response onto FreeTextEvaluation. Responses
// carrying both score_total and subscores use the primary shape; anything else
// is read through the alias table. It never fails: unreadable numbers become 0
// and unreadable or empty notes become the shape's default text.
func Normalize(raw map[string]any) model.FreeTextEvaluation {
	_, hasTotal := raw["score_total"]
	_, hasSubs := raw["subscores"]
	if hasTotal && hasSubs {
		subs, _ := raw["subscores"].(map[string]any)
		return model.FreeTextEvaluation{
			ScoreTotal: toScore(raw["score_total"]),
			Subscores: model.Subscores{
				ContextFit:               toScore(subs["context_fit"]),
				InterpersonalSensitivity: toScore(subs["interpersonal_sensitivity"]),
				Clarity:                  toScore(subs["clarity"]),
			},
			ShortFeedback: toNote(raw["short_feedback"], DefaultFeedback),
			NextDrill:     toNote(raw["next_drill"], DefaultNextDrill),
		}
	}

	return model.FreeTextEvaluation{
		ScoreTotal: toScore(firstTruthy(raw, aliasKeys.score)),
		Subscores: model.Subscores{
			ContextFit:               toScore(firstTruthy(raw, aliasKeys.contextFit)),
			InterpersonalSensitivity: toScore(firstTruthy(raw, aliasKeys.interpersonal)),
			Clarity:                  toScore(firstTruthy(raw, aliasKeys.clarity)),
		},
		ShortFeedback: toNote(firstTruthy(raw, aliasKeys.feedback), AliasDefaultFeedback),
		NextDrill:     toNote(firstTruthy(raw, aliasKeys.next), AliasDefaultDrill),
	}
}

// firstTruthy returns the first value under keys that is present and not
// empty, zero or false.
func firstTruthy(raw map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// toScore coerces v to an integer score in [0,100]. Fractions are truncated.
// Values are clamped as floats so out-of-range numbers cannot overflow int.
func toScore(v any) int {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(100, f)))
}

func toNote(v any, def string) string {
	s, ok := v.(string)
	if !ok {
		return def
	}
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func clamp(n int) int {
	return max(0, min(100, n))
}
