package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "leading prose", input: `Here you go: {"a":1}`, want: `{"a":1}`},
		{name: "trailing prose", input: `{"a":1} hope this helps`, want: `{"a":1}`},
		{name: "markdown fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "nested", input: `x {"a":{"b":[1,{"c":2}]}} y`, want: `{"a":{"b":[1,{"c":2}]}}`},
		{name: "brace inside string", input: `{"a":"}{"}`, want: `{"a":"}{"}`},
		{name: "escaped quote inside string", input: `{"a":"say \"}\" now"}`, want: `{"a":"say \"}\" now"}`},
		{name: "first of two", input: `{"a":1} {"b":2}`, want: `{"a":1}`},
		{name: "unbalanced then balanced", input: `{oops {"a":1}`, want: `{"a":1}`},
		{name: "japanese text", input: `結果：{"short_feedback":"良い"}です`, want: `{"short_feedback":"良い"}`},
		{name: "no object", input: `no json here`, want: ""},
		{name: "unterminated", input: `{"a":1`, want: ""},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONObject(tt.input))
		})
	}
}
