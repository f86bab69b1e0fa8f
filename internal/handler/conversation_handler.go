package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"persona-chat-go/internal/service"
)

// ConversationHandler 处理与已保存对话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// List 处理 GET /conversations?limit=&personality=。
func (h *ConversationHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "limit 必须是整数", "data": nil})
			return
		}
		limit = n
	}
	conversations, err := h.service.List(c.Request.Context(), limit, c.Query("personality"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", conversations)
}

// Get 返回会话及全部消息。
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.service.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", conv)
}

// Export 以导出文档格式下载已保存的会话。
func (h *ConversationHandler) Export(c *gin.Context) {
	result, err := h.service.ExportConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.FileName))
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Document)
}

// Delete 删除会话。不存在时返回 404。
func (h *ConversationHandler) Delete(c *gin.Context) {
	existed, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !existed {
		respondError(c, service.ErrConversationNotFound)
		return
	}
	respondOK(c, "对话已删除", nil)
}

// Statistics 返回聚合统计。
func (h *ConversationHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", stats)
}

// Cleanup 处理 POST /conversations/cleanup?days=30。
func (h *ConversationHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "days 必须是非负整数", "data": nil})
		return
	}
	removed, err := h.service.CleanupOld(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "清理完成", gin.H{"removed": removed})
}
