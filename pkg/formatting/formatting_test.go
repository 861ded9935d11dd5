package formatting_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"512B", 512, false},
		{"1MB", 1 << 20, false},
		{"256 kb", 256 << 10, false},
		{"  2GB ", 2 << 30, false},
		{"", 0, true},
		{"MB", 0, true},
		{"-5MB", 0, true},
		{"50XX", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", formatting.FormatBytes(0, 2))
	assert.Equal(t, "1 MB", formatting.FormatBytes(1<<20, 0))
	assert.Equal(t, "1.5 KB", formatting.FormatBytes(1536, 1))

	parsed, err := formatting.ParseBytes(formatting.FormatBytes(50<<20, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(50<<20), parsed)
}

type keywordSet struct {
	Keywords []string `json:"keywords"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"direct", `{"keywords": ["crm", "sales pipeline"]}`},
		{"fenced", "```json\n{\"keywords\": [\"crm\", \"sales pipeline\"]}\n```"},
		{"fenced with prose", "Here are the seeds:\n```\n{\"keywords\": [\"crm\", \"sales pipeline\"]}\n```\nDone."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[keywordSet](tt.input)
			require.NoError(t, err)
			assert.Equal(t, []string{"crm", "sales pipeline"}, got.Keywords)
		})
	}
}

func TestParseRaw(t *testing.T) {
	got, err := formatting.Parse[json.RawMessage]("```json\n{\"segments\": []}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"segments": []}`, string(got))
}

func TestParseFailure(t *testing.T) {
	for _, input := range []string{"", "not json", "```json\n{broken\n```"} {
		_, err := formatting.Parse[keywordSet](input)
		assert.ErrorIs(t, err, formatting.ErrParseFailed)
	}
}
