// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"persona-chat-go/internal/config"
	"persona-chat-go/pkg/log"
	"persona-chat-go/pkg/tasks"
)

// Publisher 发布对话生命周期事件。
type Publisher interface {
	Publish(ctx context.Context, event tasks.ConversationEvent) error
	Close() error
}

// messageWriter 是 *kafka.Writer 中被用到的部分。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
}

// NewPublisher 初始化 Kafka 生产者。cfg.Brokers 为空时返回一个什么都不做的 Publisher。
// Brokers 支持逗号分隔的多个地址。
func NewPublisher(cfg config.KafkaConfig) Publisher {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		log.Info("未配置 Kafka，对话事件将不会被发布")
		return noopPublisher{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.Topic)
	return &kafkaPublisher{writer: w}
}

// Publish 发送一个对话事件，以会话 ID 作为消息 key，保证同一会话的事件有序。
func (p *kafkaPublisher) Publish(ctx context.Context, event tasks.ConversationEvent) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close 刷新并关闭底层 writer。
func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

func encodeEvent(event tasks.ConversationEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Value:   value,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(event.Type)}},
	}
	if event.ConversationID != "" {
		msg.Key = []byte(event.ConversationID)
	}
	return msg, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, tasks.ConversationEvent) error { return nil }
func (noopPublisher) Close() error                                        { return nil }
