package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"persona-chat-go/internal/model"
)

// DefaultWindowTTL 是会话窗口在 Redis 中的默认保留时间。
const DefaultWindowTTL = 7 * 24 * time.Hour

// SessionWindow 是某个聊天会话在某一时刻的窗口快照。
type SessionWindow struct {
	SessionID   string              `json:"sessionId"`
	Personality string              `json:"personality"`
	Messages    []model.ChatMessage `json:"messages"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// SessionRepository 定义了活跃会话窗口的缓存操作，用于进程重启后恢复会话。
type SessionRepository interface {
	SaveWindow(ctx context.Context, window SessionWindow) error
	LoadWindow(ctx context.Context, sessionID string) (*SessionWindow, bool, error)
	DeleteWindow(ctx context.Context, sessionID string) error
	ListSessionIDs(ctx context.Context) ([]string, error)
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。ttl <= 0 时使用 DefaultWindowTTL。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	if ttl <= 0 {
		ttl = DefaultWindowTTL
	}
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func windowKey(sessionID string) string {
	return fmt.Sprintf("session:%s:window", sessionID)
}

// SaveWindow 覆盖写入会话窗口并刷新过期时间。
func (r *redisSessionRepository) SaveWindow(ctx context.Context, window SessionWindow) error {
	jsonData, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("failed to marshal session window: %w", err)
	}
	if err := r.redisClient.Set(ctx, windowKey(window.SessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session window: %w", err)
	}
	return nil
}

// LoadWindow 读取会话窗口，不存在时返回 (nil, false, nil)。
func (r *redisSessionRepository) LoadWindow(ctx context.Context, sessionID string) (*SessionWindow, bool, error) {
	jsonData, err := r.redisClient.Get(ctx, windowKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session window: %w", err)
	}
	var window SessionWindow
	if err := json.Unmarshal([]byte(jsonData), &window); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal session window: %w", err)
	}
	return &window, true, nil
}

// DeleteWindow 删除会话窗口。
func (r *redisSessionRepository) DeleteWindow(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, windowKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session window: %w", err)
	}
	return nil
}

// ListSessionIDs 通过 SCAN session:*:window 返回所有缓存中的会话 ID。
func (r *redisSessionRepository) ListSessionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := r.redisClient.Scan(ctx, 0, "session:*:window", 100).Iterator()
	for iter.Next(ctx) {
		// key 格式: session:{id}:window
		id := strings.TrimSuffix(strings.TrimPrefix(iter.Val(), "session:"), ":window")
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan session keys: %w", err)
	}
	return ids, nil
}
