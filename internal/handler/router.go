package handler

import (
	"github.com/gin-gonic/gin"

	"persona-chat-go/internal/middleware"
	"persona-chat-go/internal/service"
)

// NewRouter 创建 Gin 路由引擎并注册全部路由。
func NewRouter(sessions service.SessionService, conversations service.ConversationService) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	personalityHandler := NewPersonalityHandler()
	sessionHandler := NewSessionHandler(sessions, conversations)
	conversationHandler := NewConversationHandler(conversations)
	chatHandler := NewChatHandler(sessions)

	apiV1 := r.Group("/api/v1")
	{
		personalities := apiV1.Group("/personalities")
		{
			personalities.GET("", personalityHandler.List)
			personalities.GET("/:key", personalityHandler.Get)
		}

		sessionGroup := apiV1.Group("/sessions")
		{
			sessionGroup.POST("", sessionHandler.Create)
			sessionGroup.GET("/:sessionId", sessionHandler.Get)
			sessionGroup.DELETE("/:sessionId", sessionHandler.Close)
			sessionGroup.PUT("/:sessionId/personality", sessionHandler.SelectPersonality)
			sessionGroup.GET("/:sessionId/messages", sessionHandler.Messages)
			sessionGroup.POST("/:sessionId/messages", sessionHandler.SendMessage)
			sessionGroup.DELETE("/:sessionId/memory", sessionHandler.ClearMemory)
			sessionGroup.POST("/:sessionId/save", sessionHandler.Save)
			sessionGroup.POST("/:sessionId/resume", sessionHandler.Resume)
			sessionGroup.GET("/:sessionId/export", sessionHandler.Export)
			sessionGroup.POST("/:sessionId/import", sessionHandler.Import)
		}

		conversationGroup := apiV1.Group("/conversations")
		{
			conversationGroup.GET("", conversationHandler.List)
			conversationGroup.GET("/stats", conversationHandler.Statistics)
			conversationGroup.POST("/cleanup", conversationHandler.Cleanup)
			conversationGroup.GET("/:id", conversationHandler.Get)
			conversationGroup.GET("/:id/export", conversationHandler.Export)
			conversationGroup.DELETE("/:id", conversationHandler.Delete)
		}
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:sessionId", chatHandler.Handle)
	return r
}
