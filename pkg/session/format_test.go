package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatHistory(t *testing.T) {
	tests := []struct {
		name    string
		entries []ConversationEntry
		budget  int
		want    string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name:    "within budget has no ellipsis",
			entries: []ConversationEntry{{Query: "Q", Response: "12345"}},
			budget:  5,
			want:    "User: Q\nAssistant: 12345",
		},
		{
			name:    "truncates by runes",
			entries: []ConversationEntry{{Query: "Q", Response: "héllo wörld"}},
			budget:  4,
			want:    "User: Q\nAssistant: héll...",
		},
		{
			name:    "folds newlines",
			entries: []ConversationEntry{{Query: "line one\nline two", Response: "a\n\nb"}},
			budget:  200,
			want:    "User: line one line two\nAssistant: a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatHistory(tt.entries, tt.budget))
		})
	}
}

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		name    string
		queries []string
		want    []string
	}{
		{
			name:    "capitalized words and phrases",
			queries: []string{"What did Federal Reserve say about inflation?"},
			want:    []string{"What", "Federal", "Federal Reserve", "Reserve"},
		},
		{
			name:    "short and lowercase words skipped",
			queries: []string{"how is the USA and IBM doing"},
			want:    []string{},
		},
		{
			name:    "punctuation trimmed and duplicates dropped",
			queries: []string{"Tesla, Tesla.", "(Tesla)"},
			want:    []string{"Tesla", "Tesla Tesla"},
		},
		{
			name:    "capped at five",
			queries: []string{"Apple Google Microsoft Amazon Nvidia Intel"},
			want:    []string{"Apple", "Apple Google", "Google", "Google Microsoft", "Microsoft"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTopics(tt.queries, 5))
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize("s", nil)
	assert.Equal(t, "s", sum.SessionID)
	assert.Zero(t, sum.TotalExchanges)
	assert.Equal(t, time.Duration(0), sum.Duration())
	assert.NotNil(t, sum.Topics)
}
