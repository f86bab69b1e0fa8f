package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"persona-chat-go/internal/config"
	"persona-chat-go/internal/memory"
	"persona-chat-go/internal/model"
	"persona-chat-go/internal/personality"
	"persona-chat-go/internal/repository"
	"persona-chat-go/pkg/llm"
	"persona-chat-go/pkg/log"
)

var (
	// ErrSessionNotFound 表示会话既不在内存中也不在窗口缓存中。
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownPersonality 表示请求的人格 key 不在内置表中。
	ErrUnknownPersonality = errors.New("unknown personality")
	// ErrEmptyMessage 表示用户消息为空。
	ErrEmptyMessage = errors.New("message must not be empty")
)

// SessionService 管理活跃的聊天会话。
type SessionService interface {
	Create(ctx context.Context, personalityKey string) (*ChatSession, error)
	Get(ctx context.Context, sessionID string) (*ChatSession, error)
	Close(ctx context.Context, sessionID string) error
	Chat(ctx context.Context, sessionID, text string) (string, error)
	ChatStream(ctx context.Context, sessionID, text string, writer llm.MessageWriter) (string, error)
	SelectPersonality(ctx context.Context, sessionID, key string) (*ChatSession, error)
	ClearMemory(ctx context.Context, sessionID string) error
	ReplaceMessages(ctx context.Context, sessionID string, msgs []model.ChatMessage) (*ChatSession, error)
}

type sessionService struct {
	mu          sync.RWMutex
	sessions    map[string]*ChatSession
	windowRepo  repository.SessionRepository
	llmClient   llm.Client
	gen         *llm.GenerationParams
	chatCfg     config.ChatConfig
	memoryOpts  []memory.Option
	persistTime func() time.Time
}

// SessionOption 配置 SessionService。
type SessionOption func(*sessionService)

// WithMemoryOptions 为新建会话的内存追加选项，主要用于测试注入时钟。
func WithMemoryOptions(opts ...memory.Option) SessionOption {
	return func(s *sessionService) {
		s.memoryOpts = append(s.memoryOpts, opts...)
	}
}

// NewSessionService 创建一个新的 SessionService 实例。windowRepo 为 nil 时会话只保存在进程内。
func NewSessionService(llmClient llm.Client, windowRepo repository.SessionRepository, llmCfg config.LLMConfig, chatCfg config.ChatConfig, opts ...SessionOption) SessionService {
	s := &sessionService{
		sessions:    make(map[string]*ChatSession),
		windowRepo:  windowRepo,
		llmClient:   llmClient,
		gen:         buildGenerationParams(llmCfg.Generation.Temperature, llmCfg.Generation.TopP, llmCfg.Generation.MaxTokens),
		chatCfg:     chatCfg,
		persistTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sessionService) newSession(id, personalityKey string) *ChatSession {
	return NewChatSession(id, s.chatCfg.MaxHistory, personalityKey, s.llmClient, s.gen, s.memoryOpts...)
}

// Create 创建一个新会话。personalityKey 为空时使用配置的默认人格。
func (s *sessionService) Create(ctx context.Context, personalityKey string) (*ChatSession, error) {
	if personalityKey == "" {
		personalityKey = s.chatCfg.DefaultPersonality
	}
	if !personality.Exists(personalityKey) {
		return nil, ErrUnknownPersonality
	}
	session := s.newSession(uuid.NewString(), personalityKey)

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.persist(ctx, session)
	log.Infow("会话已创建", "sessionId", session.ID(), "personality", personalityKey)
	return session, nil
}

// Get 返回会话；进程内不存在时尝试从窗口缓存恢复。
func (s *sessionService) Get(ctx context.Context, sessionID string) (*ChatSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return session, nil
	}
	if s.windowRepo == nil {
		return nil, ErrSessionNotFound
	}

	window, found, err := s.windowRepo.LoadWindow(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	restored := s.newSession(sessionID, window.Personality)
	restored.Restore(window.Personality, window.Messages)

	s.mu.Lock()
	defer s.mu.Unlock()
	// 并发恢复时以先写入的为准
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	s.sessions[sessionID] = restored
	log.Infow("会话已从缓存恢复", "sessionId", sessionID, "messages", len(window.Messages))
	return restored, nil
}

// Close 从进程内和窗口缓存中移除会话。
func (s *sessionService) Close(ctx context.Context, sessionID string) error {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if s.windowRepo != nil {
		return s.windowRepo.DeleteWindow(ctx, sessionID)
	}
	return nil
}

// Chat 发送一条消息并持久化窗口。即使模型调用失败，用户消息也已写入窗口。
func (s *sessionService) Chat(ctx context.Context, sessionID, text string) (string, error) {
	return s.chat(ctx, sessionID, text, func(session *ChatSession) (string, error) {
		return session.Send(ctx, text)
	})
}

// ChatStream 与 Chat 相同，但以流式方式写出回复。
func (s *sessionService) ChatStream(ctx context.Context, sessionID, text string, writer llm.MessageWriter) (string, error) {
	return s.chat(ctx, sessionID, text, func(session *ChatSession) (string, error) {
		return session.SendStream(ctx, text, writer)
	})
}

func (s *sessionService) chat(ctx context.Context, sessionID, text string, send func(*ChatSession) (string, error)) (string, error) {
	if text == "" {
		return "", ErrEmptyMessage
	}
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	reply, err := send(session)
	s.persist(ctx, session)
	if err != nil {
		log.Warnw("模型调用失败", "sessionId", sessionID, "error", err)
		return "", err
	}
	return reply, nil
}

// SelectPersonality 切换人格，窗口随之清空。
func (s *sessionService) SelectPersonality(ctx context.Context, sessionID, key string) (*ChatSession, error) {
	if !personality.Exists(key) {
		return nil, ErrUnknownPersonality
	}
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.SelectPersonality(key)
	s.persist(ctx, session)
	return session, nil
}

// ClearMemory 清空窗口，保留人格。
func (s *sessionService) ClearMemory(ctx context.Context, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Clear()
	s.persist(ctx, session)
	return nil
}

// ReplaceMessages 用导入的消息替换窗口内容。
func (s *sessionService) ReplaceMessages(ctx context.Context, sessionID string, msgs []model.ChatMessage) (*ChatSession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Replace(msgs)
	s.persist(ctx, session)
	return session, nil
}

// persist 将会话窗口写回缓存。缓存只是恢复手段，失败时只记录日志。
func (s *sessionService) persist(ctx context.Context, session *ChatSession) {
	if s.windowRepo == nil {
		return
	}
	personalityKey, msgs := session.Snapshot()
	window := repository.SessionWindow{
		SessionID:   session.ID(),
		Personality: personalityKey,
		Messages:    msgs,
		UpdatedAt:   s.persistTime().UTC(),
	}
	if err := s.windowRepo.SaveWindow(context.WithoutCancel(ctx), window); err != nil {
		log.Errorf("保存会话窗口失败: sessionId=%s, err=%v", session.ID(), err)
		return
	}
	log.Debugw("会话窗口已保存", "sessionId", session.ID(), "messages", len(msgs))
}
