package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		tpl      string
		values   map[string]string
		expected string
	}{
		{
			name:     "single token",
			tpl:      `{"serialNumber": "{{serialNumber}}"}`,
			values:   map[string]string{"serialNumber": "ABC123"},
			expected: `{"serialNumber": "ABC123"}`,
		},
		{
			name: "multiple tokens",
			tpl:  `{{amount}} at {{withdrawalRate}}`,
			values: map[string]string{
				"amount":         "$50,000",
				"withdrawalRate": "4.0%",
			},
			expected: `$50,000 at 4.0%`,
		},
		{
			name:     "repeated token replaced everywhere",
			tpl:      `{{serialNumber}}-{{serialNumber}}`,
			values:   map[string]string{"serialNumber": "X"},
			expected: `X-X`,
		},
		{
			name:     "unmatched token passes through",
			tpl:      `{{known}} {{unknown}}`,
			values:   map[string]string{"known": "v"},
			expected: `v {{unknown}}`,
		},
		{
			name:     "empty mapping returns template unchanged",
			tpl:      `{"a": "{{a}}", "b": "{{b}}"}`,
			values:   map[string]string{},
			expected: `{"a": "{{a}}", "b": "{{b}}"}`,
		},
		{
			name:     "value containing brace syntax is not re-expanded",
			tpl:      `{{explanation}} {{category}}`,
			values:   map[string]string{"explanation": "use {{category}} wisely", "category": "Perpetual"},
			expected: `use {{category}} wisely Perpetual`,
		},
		{
			name:     "no tokens at all",
			tpl:      `plain text`,
			values:   map[string]string{"a": "b"},
			expected: `plain text`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Render(tt.tpl, tt.values))
		})
	}
}

func TestRenderFullSubstitutionLeavesNoTokens(t *testing.T) {
	tpl := `{"serial": "{{serialNumber}}", "amount": "{{amount}}", "rate": "{{withdrawalRate}}"}`

	values := map[string]string{}
	for _, name := range Tokens(tpl) {
		values[name] = "filled"
	}

	out := Render(tpl, values)
	assert.False(t, strings.Contains(out, "{{"), "rendered output still contains tokens: %s", out)
}

func TestTokens(t *testing.T) {
	tpl := `{{b}} {{a}} {{b}}`
	assert.Equal(t, []string{"b", "a"}, Tokens(tpl))
	assert.Empty(t, Tokens("no tokens here"))
}
