package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-chat-go/internal/personality"
)

// PersonalityHandler 暴露内置人格表。
type PersonalityHandler struct{}

// NewPersonalityHandler 创建一个新的 PersonalityHandler。
func NewPersonalityHandler() *PersonalityHandler {
	return &PersonalityHandler{}
}

// List 按固定顺序返回全部人格。
func (h *PersonalityHandler) List(c *gin.Context) {
	respondOK(c, "success", gin.H{
		"default":       personality.DefaultKey,
		"personalities": personality.List(),
	})
}

// Get 返回单个人格，包括它的提示词。
func (h *PersonalityHandler) Get(c *gin.Context) {
	key := c.Param("key")
	if !personality.Exists(key) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "未知的人格", "data": nil})
		return
	}
	p := personality.Get(key)
	respondOK(c, "success", gin.H{
		"key":    p.Key,
		"name":   p.Name,
		"emoji":  p.Emoji,
		"prompt": p.Prompt,
	})
}
