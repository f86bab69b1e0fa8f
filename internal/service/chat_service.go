// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"sync"

	"persona-chat-go/internal/memory"
	"persona-chat-go/internal/model"
	"persona-chat-go/internal/personality"
	"persona-chat-go/pkg/llm"
	"persona-chat-go/pkg/log"
)

// ChatSession 是一个聊天会话：一份会话内存加上当前人格。
// 同一会话上的 Send 按轮次串行执行；模型调用期间不持有状态锁，
// 快照、保存和导出可以随时进行。
type ChatSession struct {
	id   string
	turn sync.Mutex // 串行化 Send / SendStream
	mu   sync.Mutex // 保护 memory、persona 和 generation
	// generation 在切换人格、清空或替换内存时递增，
	// 用来丢弃在此之前发出的模型回复。
	generation uint64
	memory     *memory.ConversationMemory
	persona    *personality.Context
	llmClient  llm.Client
	gen        *llm.GenerationParams
}

// NewChatSession 创建一个新的会话。personalityKey 未知时使用默认人格的提示词。
func NewChatSession(id string, maxHistory int, personalityKey string, llmClient llm.Client, gen *llm.GenerationParams, opts ...memory.Option) *ChatSession {
	mem := memory.New(maxHistory, opts...)
	return &ChatSession{
		id:        id,
		memory:    mem,
		persona:   personality.NewContext(mem, personalityKey),
		llmClient: llmClient,
		gen:       gen,
	}
}

// ID 返回会话 ID。
func (s *ChatSession) ID() string {
	return s.id
}

// Send 发送一条用户消息并返回模型回复。
//
// 请求在追加用户消息之前构建，因此请求中恰好出现一次 newUserText。
// 用户消息总是写入内存；只有模型调用成功，且调用期间窗口没有被清空、
// 替换或切换人格时，才写入助手回复。
func (s *ChatSession) Send(ctx context.Context, text string) (string, error) {
	return s.send(text, func(msgs []llm.Message) (string, error) {
		return s.llmClient.Complete(ctx, msgs, s.gen)
	})
}

// SendStream 与 Send 相同，但模型回复以分块形式写入 writer。
func (s *ChatSession) SendStream(ctx context.Context, text string, writer llm.MessageWriter) (string, error) {
	return s.send(text, func(msgs []llm.Message) (string, error) {
		return s.llmClient.Stream(ctx, msgs, s.gen, writer)
	})
}

func (s *ChatSession) send(text string, call func([]llm.Message) (string, error)) (string, error) {
	s.turn.Lock()
	defer s.turn.Unlock()

	s.mu.Lock()
	request := s.memory.ToRequest(s.persona.Prompt(), text)
	s.memory.Append(model.RoleUser, text)
	generation := s.generation
	s.mu.Unlock()

	reply, err := call(toLLMMessages(request))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// 调用期间窗口已被清空或替换，回复不再属于当前窗口
		log.Debugw("丢弃过期的模型回复", "sessionId", s.id)
		return reply, nil
	}
	s.memory.Append(model.RoleAssistant, reply)
	return reply, nil
}

// SelectPersonality 切换人格并清空内存。
func (s *ChatSession) SelectPersonality(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.persona.Select(key)
}

// Personality 返回当前人格 key。
func (s *ChatSession) Personality() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona.Current()
}

// Clear 清空会话内存，保留人格。
func (s *ChatSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.memory.Clear()
}

// Replace 用 msgs 替换内存内容，保留人格。
func (s *ChatSession) Replace(msgs []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.memory.Clear()
	s.memory.Restore(msgs)
}

// Restore 同时恢复人格和内存，用于从缓存重建会话。
func (s *ChatSession) Restore(personalityKey string, msgs []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.persona.Select(personalityKey)
	s.memory.Restore(msgs)
}

// Snapshot 原子地返回当前人格和内存副本。
func (s *ChatSession) Snapshot() (string, []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona.Current(), s.memory.Messages()
}

// SessionView 是会话对外展示的状态。
type SessionView struct {
	ID              string                  `json:"id"`
	Personality     string                  `json:"personality"`
	PersonalityName string                  `json:"personalityName"`
	MaxHistory      int                     `json:"maxHistory"`
	Summary         model.MemorySummary     `json:"summary"`
	Stats           model.ConversationStats `json:"stats"`
}

// View 返回会话的当前状态。
func (s *ChatSession) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.persona.Current()
	return SessionView{
		ID:              s.id,
		Personality:     key,
		PersonalityName: personality.Name(key),
		MaxHistory:      s.memory.MaxHistory(),
		Summary:         s.memory.Summary(),
		Stats:           memory.Stats(s.memory.Messages()),
	}
}

func toLLMMessages(msgs []model.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// UserFacingMessage 将模型调用错误转换为展示给用户的提示。
func UserFacingMessage(err error) string {
	var apiErr *llm.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrAuthentication):
		return "❌ Erro de autenticação: Verifique sua API Key."
	case errors.Is(err, llm.ErrRateLimit):
		return "⏳ Limite de requisições atingido. Tente novamente em alguns minutos."
	case errors.As(err, &apiErr):
		return "❌ Erro na API do modelo: " + apiErr.Error()
	default:
		return "❌ Erro inesperado: " + err.Error()
	}
}

// buildGenerationParams 从配置构建生成参数，全部为零值时返回 nil。
func buildGenerationParams(temperature, topP float64, maxTokens int) *llm.GenerationParams {
	var gp llm.GenerationParams
	if temperature != 0 {
		gp.Temperature = &temperature
	}
	if topP != 0 {
		gp.TopP = &topP
	}
	if maxTokens != 0 {
		gp.MaxTokens = &maxTokens
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}
