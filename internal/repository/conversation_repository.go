// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"persona-chat-go/internal/model"
	"persona-chat-go/pkg/database"
)

// DefaultListLimit 是 List 在 limit <= 0 时使用的条数。
const DefaultListLimit = 50

// 单条 IN 语句中的最大 id 数，低于 SQLite 的变量上限。
const deleteBatchSize = 500

// ConversationRepository 定义了已保存会话的持久化操作。
//
// 未找到是正常结果（found=false、false 或 0），只有存储层故障才返回 error，
// 且 error 满足 errors.Is(err, ErrStorage)。
type ConversationRepository interface {
	Save(ctx context.Context, messages []model.ChatMessage, personality string) (string, error)
	Load(ctx context.Context, conversationID string) (*model.Conversation, bool, error)
	List(ctx context.Context, limit int, personality string) ([]model.ConversationSummary, error)
	Delete(ctx context.Context, conversationID string) (bool, error)
	Statistics(ctx context.Context) (*model.Statistics, error)
	CleanupOld(ctx context.Context, daysOld int) (int64, error)
}

type gormConversationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Option 配置 ConversationRepository。
type Option func(*gormConversationRepository)

// WithClock 替换存储层的时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(r *gormConversationRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例，
// 并幂等地创建 conversations / messages 表及其索引。
func NewConversationRepository(db *gorm.DB, opts ...Option) (ConversationRepository, error) {
	r := &gormConversationRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if err := db.AutoMigrate(&model.Conversation{}, &model.ConversationMessage{}); err != nil {
		return nil, storeErr("migrate", err)
	}
	return r, nil
}

// Open 按位置字符串打开存储并完成建表，返回仓库和底层连接（由调用方关闭）。
// 位置为空、目录不可写、无法连接等失败都满足 errors.Is(err, ErrStorage)。
func Open(location string, opts ...Option) (ConversationRepository, *gorm.DB, error) {
	db, err := database.Open(location)
	if err != nil {
		return nil, nil, storeErr("open", err)
	}
	repo, err := NewConversationRepository(db, opts...)
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return repo, db, nil
}

// Save 在一个事务内写入会话行和全部消息行，返回新分配的会话 ID。
func (r *gormConversationRepository) Save(ctx context.Context, messages []model.ChatMessage, personality string) (string, error) {
	now := r.now().UTC()
	conv := model.Conversation{
		ID:           uuid.NewString(),
		Personality:  personality,
		StartTime:    now,
		EndTime:      now,
		MessageCount: len(messages),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(messages) > 0 {
		conv.StartTime = messages[0].Timestamp.UTC()
		conv.EndTime = messages[len(messages)-1].Timestamp.UTC()
	}

	rows := make([]model.ConversationMessage, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, model.ConversationMessage{
			ConversationID: conv.ID,
			Role:           m.Role,
			Content:        m.Content,
			Timestamp:      m.Timestamp.UTC(),
			CreatedAt:      now,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&conv).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 100).Error
	})
	if err != nil {
		return "", storeErr("save", err)
	}
	return conv.ID, nil
}

// Load 读取会话及其按时间升序排列的消息。会话不存在时返回 (nil, false, nil)。
func (r *gormConversationRepository) Load(ctx context.Context, conversationID string) (*model.Conversation, bool, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", conversationID).First(&conv).Error; err != nil {
			return err
		}
		return tx.Where("conversation_id = ?", conversationID).
			Order("timestamp asc").Order("id asc").
			Find(&conv.Messages).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr("load", err)
	}
	return &conv, true, nil
}

// List 返回最多 limit 条会话概要，按创建时间倒序；personality 非空时先过滤再限制条数。
func (r *gormConversationRepository) List(ctx context.Context, limit int, personality string) ([]model.ConversationSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := r.db.WithContext(ctx).Model(&model.Conversation{})
	if personality != "" {
		query = query.Where("personality = ?", personality)
	}

	summaries := make([]model.ConversationSummary, 0, limit)
	err := query.Order("created_at desc").Order("id asc").Limit(limit).Find(&summaries).Error
	if err != nil {
		return nil, storeErr("list", err)
	}
	return summaries, nil
}

// Delete 在一个事务内先删除消息再删除会话行，返回会话行是否存在。
func (r *gormConversationRepository) Delete(ctx context.Context, conversationID string) (bool, error) {
	var existed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&model.ConversationMessage{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", conversationID).Delete(&model.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		existed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, storeErr("delete", err)
	}
	return existed, nil
}

// Statistics 在同一个读事务中计算聚合统计，不会看到进行中的 Save。
func (r *gormConversationRepository) Statistics(ctx context.Context) (*model.Statistics, error) {
	stats := &model.Statistics{ConversationsByPersonality: []model.PersonalityCount{}}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Conversation{}).Count(&stats.TotalConversations).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.ConversationMessage{}).Count(&stats.TotalMessages).Error; err != nil {
			return err
		}
		err := tx.Model(&model.Conversation{}).
			Select("personality, count(*) as count").
			Group("personality").
			Order("count desc").Order("personality asc").
			Scan(&stats.ConversationsByPersonality).Error
		if err != nil {
			return err
		}

		var latest []model.Conversation
		if err := tx.Select("created_at").Order("created_at desc").Limit(1).Find(&latest).Error; err != nil {
			return err
		}
		if len(latest) > 0 {
			last := latest[0].CreatedAt
			stats.LastConversationDate = &last
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("statistics", err)
	}
	return stats, nil
}

// CleanupOld 删除 created_at 早于（当天零点 - daysOld 天）的会话及其消息，返回删除的会话数。
func (r *gormConversationRepository) CleanupOld(ctx context.Context, daysOld int) (int64, error) {
	cutoff := CleanupCutoff(r.now(), daysOld).UTC()

	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&model.Conversation{}).Where("created_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return err
		}
		for start := 0; start < len(ids); start += deleteBatchSize {
			batch := ids[start:min(start+deleteBatchSize, len(ids))]
			if err := tx.Where("conversation_id IN ?", batch).Delete(&model.ConversationMessage{}).Error; err != nil {
				return err
			}
			res := tx.Where("id IN ?", batch).Delete(&model.Conversation{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("cleanup", err)
	}
	return removed, nil
}

// CleanupCutoff 返回 now 所在本地日期零点往前 daysOld 天的时刻。
// daysOld 为 0 时截止点就是今天零点，今天创建的会话不会被清理。
func CleanupCutoff(now time.Time, daysOld int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -daysOld)
}
