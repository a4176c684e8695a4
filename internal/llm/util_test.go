package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json code block", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"generic code block", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"code block with language", "```javascript\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"plain JSON", `{"key": "value"}`, `{"key": "value"}`},
		{"preamble before object", "Here is your analysis:\n{\"score\": 72}", `{"score": 72}`},
		{"preamble before array", "Questions:\n[\"q1\", \"q2\"]", `["q1", "q2"]`},
		{"trailing text", "{\"key\": \"value\"}\n\nGood luck with the interview!", `{"key": "value"}`},
		{"escaped quotes", "Result: {\"message\": \"He said \\\"hi\\\"\"}", `{"message": "He said \"hi\""}`},
		{"prose only", "I cannot help with that.", "I cannot help with that."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"simple object", `{"score": 1}`, `{"score": 1}`, true},
		{"wrapped in prose", `Sure! {"score": 1} Hope that helps.`, `{"score": 1}`, true},
		{"nested", `x {"a": {"b": [1, {"c": 2}]}} y`, `{"a": {"b": [1, {"c": 2}]}}`, true},
		{"braces in strings", `{"template": "Hello {name}!"}`, `{"template": "Hello {name}!"}`, true},
		{"extra closing brace", `{"a": "b"} }`, `{"a": "b"}`, true},
		{"unclosed first brace", `{ "a": {"b": 1} `, `{ "a": {"b": 1}`, true},
		{"no object", "Your fit score is high.", "", false},
		{"empty", "", "", false},
		{"close before open", "} then {", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseJSONObject(t *testing.T) {
	t.Run("markdown wrapped", func(t *testing.T) {
		got, err := ParseJSONObject("```json\n{\"score\": 64, \"risk_level\": \"medium\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, float64(64), got["score"])
		assert.Equal(t, "medium", got["risk_level"])
	})

	t.Run("prose without object", func(t *testing.T) {
		_, err := ParseJSONObject("I think you would be a great fit for this role.")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParseFailed))
	})

	t.Run("invalid json inside braces", func(t *testing.T) {
		_, err := ParseJSONObject("{score: 64}")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParseFailed))
	})
}

func TestExtractBalanced(t *testing.T) {
	assert.Equal(t, `[[1, 2], [3]]`, extractJSONArray(`[[1, 2], [3]] tail`))
	assert.Equal(t, "", extractJSONArray("not array"))
	assert.Equal(t, "", extractJSONObject(`{"open": true`))
}
