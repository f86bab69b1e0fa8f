package memory

import (
	"strings"
	"unicode/utf8"

	"persona-chat-go/internal/model"
)

// charsPerToken 是字符到 token 的粗略换算比例（约 4 个字符一个 token）。
const charsPerToken = 4

// EstimateTokens 按字符数估算 token 数量，不追求精确。
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// Stats 计算一组消息的字符数、估算 token 数与持续时间。
func Stats(msgs []model.ChatMessage) model.ConversationStats {
	var s model.ConversationStats
	if len(msgs) == 0 {
		return s
	}

	s.TotalMessages = len(msgs)
	var all strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleUser:
			s.UserMessages++
		case model.RoleAssistant:
			s.AssistantMessages++
		}
		s.TotalCharacters += utf8.RuneCountInString(msg.Content)
		all.WriteString(msg.Content)
	}
	s.EstimatedTokens = EstimateTokens(all.String())

	first, last := msgs[0].Timestamp, msgs[len(msgs)-1].Timestamp
	if !first.IsZero() && !last.IsZero() {
		d := last.Sub(first)
		s.Duration = &d
	}
	return s
}

// Preview 为展示截断消息内容：合并连续空白，超过 maxLen 个字符时追加 "..."。
// 存储中的内容永远不会被截断。
func Preview(content string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(content)
	if len(runes) > maxLen {
		content = string(runes[:maxLen]) + "..."
	}
	return strings.Join(strings.Fields(content), " ")
}
