// Package memory 实现单个聊天会话所拥有的有界消息窗口。
//
// ConversationMemory 不做任何加锁，也不做 I/O；同一实例只能由一个调用方修改，
// 需要共享时由调用方在外部串行化。
package memory

import (
	"time"

	"persona-chat-go/internal/model"
)

// DefaultMaxHistory 是未配置或配置非法时使用的窗口上限。
const DefaultMaxHistory = 50

// ConversationMemory 是有界的有序消息序列。
//
// 每次追加后都会同步执行淘汰：system 消息全部保留，剩余名额留给最近的
// user/assistant 消息。如果 system 消息本身就超过上限，则 system 消息也按
// 从旧到新的顺序淘汰，此时不保留任何非 system 消息。
type ConversationMemory struct {
	maxHistory int
	messages   []model.ChatMessage
	now        func() time.Time
}

// Option 配置 ConversationMemory。
type Option func(*ConversationMemory)

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(m *ConversationMemory) {
		if now != nil {
			m.now = now
		}
	}
}

// New 创建一个上限为 maxHistory 的空窗口。maxHistory <= 0 时使用 DefaultMaxHistory。
func New(maxHistory int, opts ...Option) *ConversationMemory {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	m := &ConversationMemory{
		maxHistory: maxHistory,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxHistory 返回窗口上限。
func (m *ConversationMemory) MaxHistory() int {
	return m.maxHistory
}

// Len 返回当前消息数。
func (m *ConversationMemory) Len() int {
	return len(m.messages)
}

// Append 以新分配的时间戳追加一条消息，然后执行淘汰。
func (m *ConversationMemory) Append(role model.Role, content string) {
	m.messages = append(m.messages, model.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: m.stamp(),
	})
	m.evict()
}

// Restore 追加已经带有时间戳的消息（导入或从缓存恢复），同样受上限约束。
// 时间戳早于窗口最后一条消息的会被抬升，以保持非递减顺序。
func (m *ConversationMemory) Restore(msgs []model.ChatMessage) {
	for _, msg := range msgs {
		if n := len(m.messages); n > 0 && msg.Timestamp.Before(m.messages[n-1].Timestamp) {
			msg.Timestamp = m.messages[n-1].Timestamp
		}
		m.messages = append(m.messages, msg)
		m.evict()
	}
}

// Clear 无条件清空窗口，包括 system 消息。
func (m *ConversationMemory) Clear() {
	m.messages = nil
}

// Messages 返回窗口内消息的副本。
func (m *ConversationMemory) Messages() []model.ChatMessage {
	out := make([]model.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// ToRequest 构建发往模型的消息序列：一条合成的 system 消息、窗口中全部
// user/assistant 消息、一条合成的 user 消息。它不会修改窗口，
// 也不会把 newUserText 写入窗口。
func (m *ConversationMemory) ToRequest(systemPrompt, newUserText string) []model.ChatMessage {
	now := m.now()
	req := make([]model.ChatMessage, 0, len(m.messages)+2)
	req = append(req, model.ChatMessage{Role: model.RoleSystem, Content: systemPrompt, Timestamp: now})
	for _, msg := range m.messages {
		if msg.Role == model.RoleUser || msg.Role == model.RoleAssistant {
			req = append(req, msg)
		}
	}
	req = append(req, model.ChatMessage{Role: model.RoleUser, Content: newUserText, Timestamp: now})
	return req
}

// Summary 统计窗口内的消息。窗口为空时时间戳为 nil。
func (m *ConversationMemory) Summary() model.MemorySummary {
	s := model.MemorySummary{Total: len(m.messages)}
	for _, msg := range m.messages {
		switch msg.Role {
		case model.RoleUser:
			s.UserCount++
		case model.RoleAssistant:
			s.AssistantCount++
		}
	}
	if len(m.messages) > 0 {
		first := m.messages[0].Timestamp
		last := m.messages[len(m.messages)-1].Timestamp
		s.FirstTimestamp = &first
		s.LastTimestamp = &last
	}
	return s
}

// stamp 返回新消息的时间戳，保证不早于窗口中最后一条消息。
func (m *ConversationMemory) stamp() time.Time {
	ts := m.now()
	if n := len(m.messages); n > 0 && ts.Before(m.messages[n-1].Timestamp) {
		ts = m.messages[n-1].Timestamp
	}
	return ts
}

func (m *ConversationMemory) evict() {
	if len(m.messages) <= m.maxHistory {
		return
	}

	systemCount := 0
	for _, msg := range m.messages {
		if msg.Role == model.RoleSystem {
			systemCount++
		}
	}
	keepSystem := min(systemCount, m.maxHistory)
	keepOther := m.maxHistory - keepSystem

	// 从尾部向前挑选要保留的消息，再按原顺序重建
	keep := make([]bool, len(m.messages))
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == model.RoleSystem {
			if keepSystem > 0 {
				keep[i] = true
				keepSystem--
			}
		} else if keepOther > 0 {
			keep[i] = true
			keepOther--
		}
	}

	kept := make([]model.ChatMessage, 0, m.maxHistory)
	for i, msg := range m.messages {
		if keep[i] {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
}
