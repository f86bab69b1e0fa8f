package memory

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-chat-go/internal/model"
)

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestMemory(max int) *ConversationMemory {
	return New(max, WithClock(stepClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))))
}

func TestNew_DefaultsNonPositiveMax(t *testing.T) {
	assert.Equal(t, DefaultMaxHistory, New(0).MaxHistory())
	assert.Equal(t, DefaultMaxHistory, New(-3).MaxHistory())
	assert.Equal(t, 7, New(7).MaxHistory())
}

func TestAppend_AssignsTimestampAndKeepsOrder(t *testing.T) {
	m := newTestMemory(10)
	m.Append(model.RoleUser, "oi")
	m.Append(model.RoleAssistant, "olá")

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "olá", msgs[1].Content)
	assert.False(t, msgs[0].Timestamp.IsZero())
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp))
}

func TestAppend_TimestampsNeverGoBackwards(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Minute), base.Add(time.Minute)}
	i := 0
	m := New(10, WithClock(func() time.Time {
		ts := times[i%len(times)]
		i++
		return ts
	}))

	m.Append(model.RoleUser, "a")
	m.Append(model.RoleAssistant, "b")
	m.Append(model.RoleUser, "c")

	msgs := m.Messages()
	for j := 1; j < len(msgs); j++ {
		assert.False(t, msgs[j].Timestamp.Before(msgs[j-1].Timestamp), "message %d went backwards", j)
	}
}

func TestAppend_EvictsOldestNonSystem(t *testing.T) {
	m := newTestMemory(3)
	m.Append(model.RoleUser, "1")
	m.Append(model.RoleAssistant, "2")
	m.Append(model.RoleUser, "3")
	m.Append(model.RoleAssistant, "4")

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"2", "3", "4"}, contents(msgs))
}

func TestAppend_RetainsSystemMessages(t *testing.T) {
	m := newTestMemory(3)
	m.Append(model.RoleSystem, "persona")
	m.Append(model.RoleUser, "1")
	m.Append(model.RoleAssistant, "2")
	m.Append(model.RoleUser, "3")
	m.Append(model.RoleAssistant, "4")

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"persona", "3", "4"}, contents(msgs))
}

func TestAppend_SystemMessagesAloneExceedingCap(t *testing.T) {
	m := newTestMemory(2)
	m.Append(model.RoleUser, "u")
	m.Append(model.RoleSystem, "s1")
	m.Append(model.RoleSystem, "s2")
	m.Append(model.RoleSystem, "s3")

	// system messages are capped oldest-first and no non-system message survives
	msgs := m.Messages()
	assert.Equal(t, []string{"s2", "s3"}, contents(msgs))
}

// TestAppend_BoundAndSystemRetentionProperty drives random append sequences and
// checks the bound and system retention after every call.
func TestAppend_BoundAndSystemRetentionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	roles := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleSystem}

	for trial := 0; trial < 50; trial++ {
		max := 1 + rng.Intn(8)
		m := newTestMemory(max)
		for step := 0; step < 60; step++ {
			before := m.Messages()
			// skip system messages when the cap is already full of them
			role := roles[rng.Intn(len(roles))]
			if role == model.RoleSystem && countRole(before, model.RoleSystem) >= max-1 {
				role = model.RoleUser
			}
			m.Append(role, fmt.Sprintf("%d-%d", trial, step))

			after := m.Messages()
			require.LessOrEqual(t, len(after), max)
			for _, msg := range before {
				if msg.Role == model.RoleSystem {
					assert.Contains(t, after, msg, "system message evicted (trial %d step %d)", trial, step)
				}
			}
			for j := 1; j < len(after); j++ {
				require.False(t, after[j].Timestamp.Before(after[j-1].Timestamp))
			}
		}
	}
}

func TestClear_RemovesEverything(t *testing.T) {
	m := newTestMemory(5)
	m.Append(model.RoleSystem, "persona")
	m.Append(model.RoleUser, "hello")
	m.Clear()

	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Messages())
}

func TestToRequest_Shape(t *testing.T) {
	m := newTestMemory(10)
	m.Append(model.RoleSystem, "stored system")
	m.Append(model.RoleUser, "oi")
	m.Append(model.RoleAssistant, "olá")

	req := m.ToRequest("PROMPT", "tudo bem?")
	require.Len(t, req, 4)
	assert.Equal(t, model.RoleSystem, req[0].Role)
	assert.Equal(t, "PROMPT", req[0].Content)
	assert.Equal(t, "oi", req[1].Content)
	assert.Equal(t, "olá", req[2].Content)
	assert.Equal(t, model.RoleUser, req[3].Role)
	assert.Equal(t, "tudo bem?", req[3].Content)
}

func TestToRequest_DoesNotMutateMemory(t *testing.T) {
	m := newTestMemory(10)
	m.Append(model.RoleUser, "oi")
	m.Append(model.RoleAssistant, "olá")
	before := m.Messages()

	first := m.ToRequest("PROMPT", "next")
	second := m.ToRequest("PROMPT", "next")

	assert.Equal(t, before, m.Messages())
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Role, second[i].Role)
		assert.Equal(t, first[i].Content, second[i].Content)
	}

	// callers cannot reach the window through the returned slice
	first[1].Content = "tampered"
	assert.Equal(t, "oi", m.Messages()[0].Content)
}

func TestSummary(t *testing.T) {
	m := newTestMemory(10)
	empty := m.Summary()
	assert.Equal(t, 0, empty.Total)
	assert.Nil(t, empty.FirstTimestamp)
	assert.Nil(t, empty.LastTimestamp)

	m.Append(model.RoleSystem, "s")
	m.Append(model.RoleUser, "u1")
	m.Append(model.RoleAssistant, "a1")
	m.Append(model.RoleUser, "u2")

	s := m.Summary()
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.UserCount)
	assert.Equal(t, 1, s.AssistantCount)
	msgs := m.Messages()
	require.NotNil(t, s.FirstTimestamp)
	require.NotNil(t, s.LastTimestamp)
	assert.True(t, s.FirstTimestamp.Equal(msgs[0].Timestamp))
	assert.True(t, s.LastTimestamp.Equal(msgs[3].Timestamp))
}

func TestRestore_AppliesBoundAndOrder(t *testing.T) {
	m := newTestMemory(2)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Restore([]model.ChatMessage{
		{Role: model.RoleUser, Content: "a", Timestamp: base},
		{Role: model.RoleAssistant, Content: "b", Timestamp: base.Add(time.Second)},
		{Role: model.RoleUser, Content: "c", Timestamp: base},
	})

	msgs := m.Messages()
	assert.Equal(t, []string{"b", "c"}, contents(msgs))
	assert.True(t, msgs[1].Timestamp.Equal(msgs[0].Timestamp), "out-of-order timestamp is raised")
}

func contents(msgs []model.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func countRole(msgs []model.ChatMessage, role model.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}
