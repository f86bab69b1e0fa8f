package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"persona-chat-go/internal/codec"
	"persona-chat-go/internal/model"
	"persona-chat-go/internal/repository"
	"persona-chat-go/pkg/kafka"
	"persona-chat-go/pkg/log"
	"persona-chat-go/pkg/storage"
	"persona-chat-go/pkg/tasks"
)

var (
	// ErrConversationNotFound 表示已保存的会话不存在。
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrInvalidDocument 表示导入的文档既不是消息数组也不是导出文档。
	ErrInvalidDocument = errors.New("invalid conversation document")
	// ErrArchiveDisabled 表示请求了归档但未配置对象存储。
	ErrArchiveDisabled = errors.New("export archive is not configured")
)

// ExportResult 是一次导出的结果。Archive 仅在请求归档时非空。
type ExportResult struct {
	FileName string                  `json:"fileName"`
	Document []byte                  `json:"-"`
	Archive  *storage.ArchivedExport `json:"archive,omitempty"`
}

// ConversationService 定义了对话持久化与导入导出的业务逻辑。
type ConversationService interface {
	SaveSession(ctx context.Context, sessionID string) (string, error)
	Load(ctx context.Context, conversationID string) (*model.Conversation, error)
	List(ctx context.Context, limit int, personality string) ([]model.ConversationSummary, error)
	Delete(ctx context.Context, conversationID string) (bool, error)
	Statistics(ctx context.Context) (*model.Statistics, error)
	CleanupOld(ctx context.Context, daysOld int) (int64, error)
	ResumeInSession(ctx context.Context, conversationID, sessionID string) (*ChatSession, error)
	ExportSession(ctx context.Context, sessionID string, archive bool) (*ExportResult, error)
	ExportConversation(ctx context.Context, conversationID string) (*ExportResult, error)
	ImportIntoSession(ctx context.Context, sessionID string, data []byte) (*ChatSession, error)
}

type conversationService struct {
	repo      repository.ConversationRepository
	sessions  SessionService
	publisher kafka.Publisher
	archive   storage.ExportArchive
	now       func() time.Time
}

// NewConversationService 创建一个新的 ConversationService。archive 为 nil 时不支持归档。
func NewConversationService(repo repository.ConversationRepository, sessions SessionService, publisher kafka.Publisher, archive storage.ExportArchive) ConversationService {
	return &conversationService{
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		archive:   archive,
		now:       time.Now,
	}
}

// SaveSession 将会话当前窗口保存为一条新的会话记录。
func (s *conversationService) SaveSession(ctx context.Context, sessionID string) (string, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	personalityKey, msgs := session.Snapshot()
	id, err := s.repo.Save(ctx, msgs, personalityKey)
	if err != nil {
		return "", err
	}
	log.Infow("会话已保存", "conversationId", id, "sessionId", sessionID, "messages", len(msgs))
	s.publish(ctx, tasks.ConversationEvent{
		Type:           tasks.EventConversationSaved,
		ConversationID: id,
		Personality:    personalityKey,
		MessageCount:   len(msgs),
	})
	return id, nil
}

// Load 读取一条已保存的会话。
func (s *conversationService) Load(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, found, err := s.repo.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// List 列出已保存会话的概要。
func (s *conversationService) List(ctx context.Context, limit int, personality string) ([]model.ConversationSummary, error) {
	return s.repo.List(ctx, limit, personality)
}

// Delete 删除一条会话，返回它是否存在。
func (s *conversationService) Delete(ctx context.Context, conversationID string) (bool, error) {
	existed, err := s.repo.Delete(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if existed {
		s.publish(ctx, tasks.ConversationEvent{Type: tasks.EventConversationDeleted, ConversationID: conversationID})
	}
	return existed, nil
}

// Statistics 返回存储层的聚合统计。
func (s *conversationService) Statistics(ctx context.Context) (*model.Statistics, error) {
	return s.repo.Statistics(ctx)
}

// CleanupOld 删除 daysOld 天之前创建的会话。
func (s *conversationService) CleanupOld(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 0 {
		return 0, fmt.Errorf("daysOld must not be negative: %d", daysOld)
	}
	removed, err := s.repo.CleanupOld(ctx, daysOld)
	if err != nil {
		return 0, err
	}
	log.Infow("旧会话清理完成", "daysOld", daysOld, "removed", removed)
	if removed > 0 {
		s.publish(ctx, tasks.ConversationEvent{Type: tasks.EventConversationCleanup, Removed: removed})
	}
	return removed, nil
}

// ResumeInSession 把已保存会话的人格和消息载入到活跃会话中。
func (s *conversationService) ResumeInSession(ctx context.Context, conversationID, sessionID string) (*ChatSession, error) {
	conv, err := s.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.SelectPersonality(ctx, sessionID, conv.Personality); err != nil && !errors.Is(err, ErrUnknownPersonality) {
		return nil, err
	}
	return s.sessions.ReplaceMessages(ctx, sessionID, conv.ChatMessages())
}

// ExportSession 导出会话当前窗口；archive 为 true 时同时上传到对象存储。
func (s *conversationService) ExportSession(ctx context.Context, sessionID string, archive bool) (*ExportResult, error) {
	if archive && s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	_, msgs := session.Snapshot()
	result, err := s.export(msgs)
	if err != nil {
		return nil, err
	}
	if archive {
		result.Archive, err = s.archive.PutExport(ctx, sessionID, result.Document)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ExportConversation 导出一条已保存的会话。
func (s *conversationService) ExportConversation(ctx context.Context, conversationID string) (*ExportResult, error) {
	conv, err := s.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.export(conv.ChatMessages())
}

func (s *conversationService) export(msgs []model.ChatMessage) (*ExportResult, error) {
	now := s.now()
	data, err := codec.Marshal(codec.ExportAt(msgs, now))
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return &ExportResult{
		FileName: fmt.Sprintf("conversa_%s.json", now.Format("20060102_150405")),
		Document: data,
	}, nil
}

// ImportIntoSession 解析导入文档并替换会话窗口。
func (s *conversationService) ImportIntoSession(ctx context.Context, sessionID string, data []byte) (*ChatSession, error) {
	msgs := codec.Import(data)
	if msgs == nil {
		return nil, ErrInvalidDocument
	}
	return s.sessions.ReplaceMessages(ctx, sessionID, msgs)
}

// publish 发布事件；事件只是通知，发布失败不影响主流程。
func (s *conversationService) publish(ctx context.Context, event tasks.ConversationEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Errorf("发布对话事件失败: type=%s, err=%v", event.Type, err)
	}
}
