package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"persona-chat-go/internal/service"
	"persona-chat-go/pkg/log"
)

// 导入文档的最大字节数。
const maxImportBytes = 10 << 20

// SessionHandler 处理活跃会话相关的 API 请求。
type SessionHandler struct {
	sessions      service.SessionService
	conversations service.ConversationService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessions service.SessionService, conversations service.ConversationService) *SessionHandler {
	return &SessionHandler{sessions: sessions, conversations: conversations}
}

type createSessionRequest struct {
	Personality string `json:"personality"`
}

type selectPersonalityRequest struct {
	Personality string `json:"personality" binding:"required"`
}

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type resumeRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
}

// Create 创建一个新会话，请求体可选。
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "请求参数无效", "data": nil})
			return
		}
	}
	session, err := h.sessions.Create(c.Request.Context(), req.Personality)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "message": "会话创建成功", "data": session.View()})
}

// Get 返回会话的人格与窗口统计。
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", session.View())
}

// Close 结束会话。
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(c.Request.Context(), c.Param("sessionId")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "会话已关闭", nil)
}

// SelectPersonality 切换会话人格，窗口随之清空。
func (h *SessionHandler) SelectPersonality(c *gin.Context) {
	var req selectPersonalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "请求参数无效", "data": nil})
		return
	}
	session, err := h.sessions.SelectPersonality(c.Request.Context(), c.Param("sessionId"), req.Personality)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "人格已切换", session.View())
}

// Messages 返回会话窗口中的消息。
func (h *SessionHandler) Messages(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	_, msgs := session.Snapshot()
	respondOK(c, "success", msgs)
}

// SendMessage 发送一条消息并同步返回模型回复。
// 模型调用失败时返回 502，并附带面向用户的提示。
func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "消息不能为空", "data": nil})
		return
	}
	sessionID := c.Param("sessionId")
	reply, err := h.sessions.Chat(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		if isSessionError(err) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    http.StatusBadGateway,
			"message": service.UserFacingMessage(err),
			"data":    nil,
		})
		return
	}
	respondOK(c, "success", gin.H{"reply": reply})
}

// ClearMemory 清空会话窗口。
func (h *SessionHandler) ClearMemory(c *gin.Context) {
	if err := h.sessions.ClearMemory(c.Request.Context(), c.Param("sessionId")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "会话记忆已清空", nil)
}

// Save 将会话窗口保存为一条会话记录。
func (h *SessionHandler) Save(c *gin.Context) {
	id, err := h.conversations.SaveSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "message": "对话保存成功", "data": gin.H{"conversationId": id}})
}

// Resume 将已保存的会话载入当前会话。
func (h *SessionHandler) Resume(c *gin.Context) {
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "请求参数无效", "data": nil})
		return
	}
	session, err := h.conversations.ResumeInSession(c.Request.Context(), req.ConversationID, c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "对话已载入", session.View())
}

// Export 导出会话窗口。archive=true 时上传到对象存储并返回下载链接，否则直接返回 JSON 文件。
func (h *SessionHandler) Export(c *gin.Context) {
	archive, _ := strconv.ParseBool(c.Query("archive"))
	result, err := h.conversations.ExportSession(c.Request.Context(), c.Param("sessionId"), archive)
	if err != nil {
		respondError(c, err)
		return
	}
	if archive {
		respondOK(c, "导出已归档", result)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.FileName))
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Document)
}

// Import 用上传的文档替换会话窗口。请求体为原始 JSON。
func (h *SessionHandler) Import(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		log.Error("读取导入文档失败", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无法读取请求体", "data": nil})
		return
	}
	session, err := h.conversations.ImportIntoSession(c.Request.Context(), c.Param("sessionId"), data)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "对话导入成功", session.View())
}

func isSessionError(err error) bool {
	return errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrEmptyMessage)
}
