package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher 定义事件发布接口
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event interface{}) error
	Close() error
}

// EventPublisher 基于RabbitMQ的事件发布器。
// 持有单一连接与通道，发布失败时在下一次发布前尝试重建连接。
type EventPublisher struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewEventPublisher 创建事件发布器并建立初始连接
func NewEventPublisher(url, exchange string, logger *zap.Logger) (*EventPublisher, error) {
	p := &EventPublisher{
		url:      url,
		exchange: exchange,
		logger:   logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect 建立连接并声明交换机，调用方须持有锁或处于初始化阶段
func (p *EventPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	// topic交换机，消费方按路由键订阅感兴趣的事件
	if err := channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	p.logger.Info("rabbitmq publisher connected", zap.String("exchange", p.exchange))
	return nil
}

// Publish 发布事件，连接失效时重连一次后重试
func (p *EventPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publisher closed")
	}

	if err := p.publishLocked(ctx, routingKey, body); err != nil {
		p.logger.Warn("publish failed, reconnecting", zap.String("routing_key", routingKey), zap.Error(err))
		p.teardownLocked()
		if err := p.connect(); err != nil {
			return err
		}
		return p.publishLocked(ctx, routingKey, body)
	}
	return nil
}

func (p *EventPublisher) publishLocked(ctx context.Context, routingKey string, body []byte) error {
	if p.channel == nil {
		return fmt.Errorf("channel not available")
	}

	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *EventPublisher) teardownLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close 关闭发布器
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.teardownLocked()
	return nil
}

// NopPublisher 空实现，MQ未启用时使用
type NopPublisher struct{}

// NewNopPublisher 创建空发布器
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

func (n *NopPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	return nil
}

func (n *NopPublisher) Close() error {
	return nil
}
