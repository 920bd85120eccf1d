package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return &Schema{
		Name: "test-object",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
				"age":  map[string]any{"type": "integer", "minimum": 0},
			},
			"required": []any{"name"},
		},
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject(`Sure! {"name":"Alice","age":10}`, testSchema())
	require.NoError(t, err)
	assert.Equal(t, "Alice", obj["name"])
	assert.Equal(t, 10.0, obj["age"])
}

func TestDecodeObjectWithoutSchema(t *testing.T) {
	obj, err := DecodeObject(`{"anything":true}`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, obj["anything"])
}

func TestDecodeObjectErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "no json", input: "I cannot help with that", reason: "no_json"},
		{name: "bad json", input: `{"name": nope}`, reason: "invalid_response"},
		{name: "missing required", input: `{"age":3}`, reason: "invalid_response"},
		{name: "wrong type", input: `{"name":"Bob","age":"ten"}`, reason: "invalid_response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeObject(tt.input, testSchema())
			require.Error(t, err)
			var inv *ErrInvalidResponse
			assert.True(t, errors.As(err, &inv))
			assert.Equal(t, tt.reason, Reason(err))
		})
	}
}

func TestValidateObject(t *testing.T) {
	require.NoError(t, ValidateObject(nil, map[string]any{"x": 1}))
	require.NoError(t, ValidateObject(testSchema(), map[string]any{"name": "Eve", "age": 3}))

	err := ValidateObject(testSchema(), map[string]any{"age": -1})
	require.Error(t, err)
	assert.Equal(t, "invalid_response", Reason(err))
}
