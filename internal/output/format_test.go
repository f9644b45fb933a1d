package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatTable},
		{"table", FormatTable},
		{"JSON", FormatJSON},
		{"csv", FormatCSV},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)
}

func TestJSON(t *testing.T) {
	u, out, _ := newTestUI()
	require.NoError(t, u.JSON(map[string]int{"score": 85}))
	assert.JSONEq(t, `{"score":85}`, out.String())
}

func TestYAML(t *testing.T) {
	u, out, _ := newTestUI()
	require.NoError(t, u.YAML(map[string]any{"url": "https://a.test/", "score": 85.5}))
	assert.Contains(t, out.String(), "url: https://a.test/")
	assert.Contains(t, out.String(), "score: 85.5")
}

func TestCSV(t *testing.T) {
	u, out, _ := newTestUI()
	require.NoError(t, u.CSV([]string{"type", "message"}, [][]string{
		{"missing_alt", "Image is missing an alt attribute."},
		{"ambiguous_link_text", `Link text "here", vague`},
	}))
	assert.Equal(t, "type,message\nmissing_alt,Image is missing an alt attribute.\nambiguous_link_text,\"Link text \"\"here\"\", vague\"\n", out.String())
}
