package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-chat-go/internal/model"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{"olá, tudo bem?", 3}, // 14 runes
		{"ááááááááá", 2},      // counted in runes, not bytes
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.text), "EstimateTokens(%q)", tt.text)
	}
}

func TestStats(t *testing.T) {
	assert.Equal(t, model.ConversationStats{}, Stats(nil))

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []model.ChatMessage{
		{Role: model.RoleUser, Content: "oi", Timestamp: base},
		{Role: model.RoleAssistant, Content: "olá!!", Timestamp: base.Add(90 * time.Second)},
		{Role: model.RoleUser, Content: "x", Timestamp: base.Add(2 * time.Minute)},
	}
	s := Stats(msgs)
	assert.Equal(t, 3, s.TotalMessages)
	assert.Equal(t, 2, s.UserMessages)
	assert.Equal(t, 1, s.AssistantMessages)
	assert.Equal(t, 8, s.TotalCharacters)
	assert.Equal(t, 2, s.EstimatedTokens)
	require.NotNil(t, s.Duration)
	assert.Equal(t, 2*time.Minute, *s.Duration)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", Preview("  a \n b\t\tc ", 100))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "", Preview("abc", 0))
	assert.Equal(t, "ção...", Preview("çãoxyz", 3))
}
