package modeltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose around object", `Sure! {"a":1} Hope that helps.`, `{"a":1}`, true},
		{"nested objects", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"brace inside string", `{"a":"} tricky {"}`, `{"a":"} tricky {"}`, true},
		{"escaped quote inside string", `{"a":"say \"hi\""}`, `{"a":"say \"hi\""}`, true},
		{"no object", "plain prose", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFirst(t *testing.T) {
	type reply struct {
		Risk    string `json:"risk"`
		Summary string `json:"summary"`
	}

	t.Run("fenced reply", func(t *testing.T) {
		var out reply
		raw := "```json\n{\"risk\":\"caution\",\"summary\":\"ok\"}\n```"
		require.NoError(t, DecodeFirst(raw, &out))
		assert.Equal(t, "caution", out.Risk)
	})

	t.Run("prose-wrapped reply", func(t *testing.T) {
		var out reply
		raw := `Here is the assessment you asked for: {"risk":"danger","summary":"avoid"} Let me know!`
		require.NoError(t, DecodeFirst(raw, &out))
		assert.Equal(t, "danger", out.Risk)
	})

	t.Run("no JSON at all", func(t *testing.T) {
		var out reply
		assert.Error(t, DecodeFirst("I am unable to help with that.", &out))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		var out reply
		assert.Error(t, DecodeFirst(`{"risk": caution}`, &out))
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", StripFences("  plain  "))
}
