// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-chat-go/internal/repository"
	"persona-chat-go/internal/service"
	"persona-chat-go/pkg/log"
)

// respondError 将业务错误映射为 HTTP 状态码并写出统一的响应结构。
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "服务器内部错误"
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		status, message = http.StatusNotFound, "会话不存在"
	case errors.Is(err, service.ErrConversationNotFound):
		status, message = http.StatusNotFound, "对话不存在"
	case errors.Is(err, service.ErrUnknownPersonality):
		status, message = http.StatusBadRequest, "未知的人格"
	case errors.Is(err, service.ErrEmptyMessage):
		status, message = http.StatusBadRequest, "消息不能为空"
	case errors.Is(err, service.ErrInvalidDocument):
		status, message = http.StatusBadRequest, "无效的对话文档"
	case errors.Is(err, service.ErrArchiveDisabled):
		status, message = http.StatusServiceUnavailable, "未配置导出归档"
	case errors.Is(err, repository.ErrStorage):
		log.Error("存储层错误", err)
		message = "存储层错误"
	default:
		log.Error("请求处理失败", err)
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": message, "data": data})
}
