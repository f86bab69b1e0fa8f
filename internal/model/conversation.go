// Package model 包含了应用的数据模型定义。
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role 表示消息的发送方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 报告 r 是否为已知角色。
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage 代表会话窗口中的单条消息，也是导入导出文档中的消息格式。
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// 不带时区的 ISO-8601 格式，按本地时间解析。解析时秒后的小数部分可有可无。
var naiveTimestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp 解析 ISO-8601 时间戳：先按 RFC 3339，再按不带时区的本地时间。
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// UnmarshalJSON 接受 RFC 3339 时间戳和不带时区的 ISO-8601 时间戳。
// timestamp 缺失或为 null 时保留零值。
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role      Role            `json:"role"`
		Content   string          `json:"content"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var ts time.Time
	if len(raw.Timestamp) > 0 && string(raw.Timestamp) != "null" {
		var text string
		if err := json.Unmarshal(raw.Timestamp, &text); err != nil {
			return fmt.Errorf("timestamp must be a string: %w", err)
		}
		parsed, err := ParseTimestamp(text)
		if err != nil {
			return err
		}
		ts = parsed
	}
	*m = ChatMessage{Role: raw.Role, Content: raw.Content, Timestamp: ts}
	return nil
}

// Conversation 对应 conversations 表，是一次已保存的会话快照。
type Conversation struct {
	ID           string                `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Personality  string                `gorm:"type:varchar(64);not null;index:idx_conversations_personality" json:"personality"`
	StartTime    time.Time             `gorm:"not null" json:"startTime"`
	EndTime      time.Time             `json:"endTime"`
	MessageCount int                   `gorm:"not null;default:0" json:"messageCount"`
	CreatedAt    time.Time             `gorm:"not null;index:idx_conversations_created_at" json:"createdAt"`
	UpdatedAt    time.Time             `gorm:"not null" json:"updatedAt"`
	Messages     []ConversationMessage `gorm:"foreignKey:ConversationID;references:ID" json:"messages,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationMessage 对应 messages 表，每一行属于一个 Conversation。
type ConversationMessage struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_messages_conversation_id" json:"-"`
	Role           Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Timestamp      time.Time `gorm:"not null;index:idx_messages_timestamp" json:"timestamp"`
	CreatedAt      time.Time `gorm:"not null" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ConversationMessage) TableName() string {
	return "messages"
}

// ChatMessage 将存储行转换回会话消息。
func (m ConversationMessage) ChatMessage() ChatMessage {
	return ChatMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
}

// ChatMessages 返回会话中按存储顺序排列的消息。
func (c *Conversation) ChatMessages() []ChatMessage {
	out := make([]ChatMessage, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, m.ChatMessage())
	}
	return out
}

// ConversationSummary 是列表接口返回的会话概要，不含消息。
type ConversationSummary struct {
	ID           string    `json:"id"`
	Personality  string    `json:"personality"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PersonalityCount 是按人格聚合的会话数量。
type PersonalityCount struct {
	Personality string `json:"personality"`
	Count       int64  `json:"count"`
}

// Statistics 是存储层的聚合统计。
type Statistics struct {
	TotalConversations         int64              `json:"totalConversations"`
	TotalMessages              int64              `json:"totalMessages"`
	ConversationsByPersonality []PersonalityCount `json:"conversationsByPersonality"`
	LastConversationDate       *time.Time         `json:"lastConversationDate"`
}
