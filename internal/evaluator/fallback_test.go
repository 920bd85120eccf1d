package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/cqdrill/internal/model"
)

func TestFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Subscores
		tot  int
	}{
		{
			name: "neutral long text",
			text: "明日の午前中にもう一度話をします",
			want: model.Subscores{ContextFit: 60, InterpersonalSensitivity: 60, Clarity: 60},
			tot:  60,
		},
		{
			name: "negative trigger only",
			text: "あの人は本当に遅いと思います",
			want: model.Subscores{ContextFit: 40, InterpersonalSensitivity: 20, Clarity: 60},
			tot:  30,
		},
		{
			name: "positive signal only",
			text: "まず先方の事情を確認して代替案を出します",
			want: model.Subscores{ContextFit: 70, InterpersonalSensitivity: 60, Clarity: 70},
			tot:  70,
		},
		{
			name: "both lexicons apply",
			text: "無視された理由を確認してから話します",
			want: model.Subscores{ContextFit: 50, InterpersonalSensitivity: 20, Clarity: 70},
			tot:  40,
		},
		{
			name: "short negative text",
			text: "怒る",
			want: model.Subscores{ContextFit: 40, InterpersonalSensitivity: 20, Clarity: 40},
			tot:  20,
		},
		{
			name: "short positive text",
			text: "謝罪と連絡",
			want: model.Subscores{ContextFit: 70, InterpersonalSensitivity: 60, Clarity: 50},
			tot:  60,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback(tt.text)
			assert.Equal(t, tt.tot, got.ScoreTotal)
			assert.Equal(t, tt.want, got.Subscores)
			assert.Equal(t, FallbackFeedback, got.ShortFeedback)
			assert.Equal(t, FallbackNextDrill, got.NextDrill)
		})
	}
}

func TestFallbackIsPure(t *testing.T) {
	text := "期限を再調整して共有します"
	assert.Equal(t, Fallback(text), Fallback(text))
}

func TestFallbackCountsCharactersNotBytes(t *testing.T) {
	// Seven Japanese characters are 21 bytes but still count as short.
	got := Fallback("明日話をします")
	assert.Equal(t, 40, got.Subscores.Clarity)
	assert.Equal(t, 50, got.ScoreTotal)
}
