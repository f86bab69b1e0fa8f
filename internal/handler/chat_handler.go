package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"persona-chat-go/internal/service"
	"persona-chat-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	sessions service.SessionService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(sessions service.SessionService) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

// clientFrame 是客户端发来的 JSON 帧。纯文本帧视为 {"type":"message"}。
type clientFrame struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	Personality string `json:"personality"`
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}
		frame := parseFrame(message)

		switch frame.Type {
		case "clear":
			if err := h.sessions.ClearMemory(c.Request.Context(), sessionID); err != nil {
				writeJSON(conn, map[string]string{"error": "清空会话失败"})
				continue
			}
			writeJSON(conn, map[string]interface{}{"type": "cleared", "timestamp": time.Now().UnixMilli()})
		case "personality":
			if _, err := h.sessions.SelectPersonality(c.Request.Context(), sessionID, frame.Personality); err != nil {
				writeJSON(conn, map[string]string{"error": "未知的人格"})
				continue
			}
			writeJSON(conn, map[string]interface{}{"type": "personality", "personality": frame.Personality})
		default:
			if strings.TrimSpace(frame.Content) == "" {
				writeJSON(conn, map[string]string{"error": "消息不能为空"})
				continue
			}
			interceptor := &chunkWriter{conn: conn}
			_, err := h.sessions.ChatStream(c.Request.Context(), sessionID, frame.Content, interceptor)
			if err != nil {
				if errors.Is(err, service.ErrSessionNotFound) {
					writeJSON(conn, map[string]string{"error": "会话不存在"})
					return
				}
				log.Errorf("处理流式响应失败: %v", err)
				writeJSON(conn, map[string]string{"error": service.UserFacingMessage(err)})
			}
			// 错误时也发送 completion 通知
			sendCompletion(conn)
		}
	}
}

func parseFrame(message []byte) clientFrame {
	if len(message) > 0 && message[0] == '{' {
		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err == nil {
			if frame.Type == "" {
				frame.Type = "message"
			}
			return frame
		}
	}
	return clientFrame{Type: "message", Content: string(message)}
}

// chunkWriter 将原始分块包装成 {"chunk":"..."} 后写入连接。
type chunkWriter struct {
	conn *websocket.Conn
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	b, _ := json.Marshal(map[string]string{"chunk": string(data)})
	return w.conn.WriteMessage(messageType, b)
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, _ := json.Marshal(v)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(conn *websocket.Conn) {
	writeJSON(conn, map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	})
}
