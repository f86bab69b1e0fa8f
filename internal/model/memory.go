package model

import "time"

// MemorySummary 描述当前会话窗口的内容。
type MemorySummary struct {
	Total          int        `json:"totalMessages"`
	UserCount      int        `json:"userMessages"`
	AssistantCount int        `json:"assistantMessages"`
	FirstTimestamp *time.Time `json:"startTime"`
	LastTimestamp  *time.Time `json:"lastMessageTime"`
}

// ConversationStats 是一组消息的字符与 token 估算统计。
type ConversationStats struct {
	TotalMessages     int            `json:"totalMessages"`
	UserMessages      int            `json:"userMessages"`
	AssistantMessages int            `json:"assistantMessages"`
	TotalCharacters   int            `json:"totalCharacters"`
	EstimatedTokens   int            `json:"estimatedTokens"`
	Duration          *time.Duration `json:"duration"`
}
