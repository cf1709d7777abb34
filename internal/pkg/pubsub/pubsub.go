package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelPaymentEvents = "payment_events"
)

// 事件类型
const (
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
	EventPaymentCancelled = "payment_cancelled"
	EventCreditsApplied   = "credits_applied"
)

// PaymentEvent 支付终态与入账事件，推送给付款用户
type PaymentEvent struct {
	Type             string    `json:"type"`
	UserID           int64     `json:"user_id"`
	PaymentRequestID string    `json:"payment_request_id"`
	Status           string    `json:"status"`
	Source           string    `json:"source,omitempty"` // webhook, poll, cancel, reconcile
	Error            string    `json:"error,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// EventTypeForStatus 交易终态对应的事件类型
func EventTypeForStatus(status string) string {
	switch status {
	case "completed":
		return EventPaymentCompleted
	case "failed":
		return EventPaymentFailed
	case "cancelled":
		return EventPaymentCancelled
	}
	return ""
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishPayment 发布支付事件
func (p *Publisher) PublishPayment(ctx context.Context, event *PaymentEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	return p.client.Publish(ctx, ChannelPaymentEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅支付事件，ctx 取消时返回
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*PaymentEvent)) error {
	sub := s.client.Subscribe(ctx, ChannelPaymentEvents)
	defer sub.Close()

	// 等待订阅确认，避免订阅前发布的消息丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event PaymentEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue // 忽略解析错误
			}

			handler(&event)
		}
	}
}
