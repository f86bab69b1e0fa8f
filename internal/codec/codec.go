// Package codec 负责会话与交换文档（JSON）之间的导入导出。
package codec

import (
	"bytes"
	"encoding/json"
	"time"

	"persona-chat-go/internal/model"
)

// AppVersion 是写入 export_info.app_version 的固定格式版本。
const AppVersion = "1.0.0"

// ExportInfo 是导出文档的元信息块。
type ExportInfo struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalMessages int       `json:"total_messages"`
	AppVersion    string    `json:"app_version"`
}

// Document 是会话的交换文档。
type Document struct {
	ExportInfo   ExportInfo          `json:"export_info"`
	Conversation []model.ChatMessage `json:"conversation"`
}

// Export 用当前时间构建导出文档，消息原样保留。
func Export(msgs []model.ChatMessage) Document {
	return ExportAt(msgs, time.Now())
}

// ExportAt 与 Export 相同，但使用给定的导出时间；除该时间外结果是确定的。
func ExportAt(msgs []model.ChatMessage, at time.Time) Document {
	conversation := make([]model.ChatMessage, len(msgs))
	copy(conversation, msgs)
	return Document{
		ExportInfo: ExportInfo{
			Timestamp:     at,
			TotalMessages: len(msgs),
			AppVersion:    AppVersion,
		},
		Conversation: conversation,
	}
}

// Marshal 将文档编码为缩进 JSON，非 ASCII 字符与 HTML 字符原样输出。
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Import 尽力解析交换文档：接受带 conversation 字段的对象或顶层数组。
// 其它形状或语法错误都返回 nil，而不是错误。角色未知的消息会被跳过。
// 时间戳可以是 RFC 3339，也可以是不带时区的 ISO-8601 本地时间。
func Import(data []byte) []model.ChatMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var raw json.RawMessage
	switch trimmed[0] {
	case '[':
		raw = trimmed
	case '{':
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil
		}
		conv, ok := doc["conversation"]
		if !ok {
			return nil
		}
		raw = conv
	default:
		return nil
	}

	var msgs []model.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	if msgs == nil {
		// "conversation": null 也视为形状不符
		return nil
	}
	valid := msgs[:0]
	for _, m := range msgs {
		if m.Role.Valid() {
			valid = append(valid, m)
		}
	}
	return valid
}
