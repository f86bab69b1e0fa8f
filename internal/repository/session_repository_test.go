package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-chat-go/internal/model"
)

func newTestSessionRepo(t *testing.T, ttl time.Duration) (SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionRepository(rdb, ttl), mr
}

func TestSessionRepository_SaveLoadDelete(t *testing.T) {
	repo, _ := newTestSessionRepo(t, time.Hour)
	ctx := context.Background()

	_, found, err := repo.LoadWindow(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	window := SessionWindow{
		SessionID:   "s1",
		Personality: "desenvolvedor",
		Messages: []model.ChatMessage{
			{Role: model.RoleUser, Content: "oi", Timestamp: ts},
			{Role: model.RoleAssistant, Content: "olá", Timestamp: ts.Add(time.Second)},
		},
		UpdatedAt: ts,
	}
	require.NoError(t, repo.SaveWindow(ctx, window))

	got, found, err := repo.LoadWindow(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "desenvolvedor", got.Personality)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "olá", got.Messages[1].Content)
	assert.True(t, got.Messages[0].Timestamp.Equal(ts))

	ids, err := repo.ListSessionIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, repo.DeleteWindow(ctx, "s1"))
	_, found, err = repo.LoadWindow(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionRepository_Expires(t *testing.T) {
	repo, mr := newTestSessionRepo(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.SaveWindow(ctx, SessionWindow{SessionID: "s2"}))
	assert.Equal(t, time.Minute, mr.TTL(windowKey("s2")))

	mr.FastForward(2 * time.Minute)
	_, found, err := repo.LoadWindow(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionRepository_CorruptPayload(t *testing.T) {
	repo, mr := newTestSessionRepo(t, 0)
	require.NoError(t, mr.Set(windowKey("bad"), "{not json"))

	_, _, err := repo.LoadWindow(context.Background(), "bad")
	require.Error(t, err)
}
