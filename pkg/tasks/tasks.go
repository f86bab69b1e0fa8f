// Package tasks defines the structure for events that are sent to Kafka.
package tasks

import "time"

// 对话生命周期事件类型。
const (
	EventConversationSaved   = "conversation.saved"
	EventConversationDeleted = "conversation.deleted"
	EventConversationCleanup = "conversation.cleanup"
)

// ConversationEvent represents a change to the conversation store.
type ConversationEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Personality    string    `json:"personality,omitempty"`
	MessageCount   int       `json:"message_count,omitempty"`
	Removed        int64     `json:"removed,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
