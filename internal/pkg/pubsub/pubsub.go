package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelCancellationEvents = "cancellation_events"
)

// EventMessage 取消流程的异步事件。服务端和 worker 都往这条通道发，
// 每个实例的 WebSocket 桥把事件转给本机在线的用户连接。
type EventMessage struct {
	Type           string `json:"type"`
	Event          string `json:"event"`
	UserID         int64  `json:"user_id"`
	CancellationID int64  `json:"cancellation_id"`
	Outcome        string `json:"outcome,omitempty"`
	ExportURL      string `json:"export_url,omitempty"`
	Message        string `json:"message,omitempty"`
}

// 事件类型常量
const (
	EventVariantAssigned  = "variant_assigned"
	EventDownsellAccepted = "downsell_accepted"
	EventFinalized        = "finalized"
	EventArchived         = "archived"
)

// 事件对应的提示文案
var EventMessages = map[string]string{
	EventVariantAssigned:  "已进入取消流程",
	EventDownsellAccepted: "挽留报价已生效，订阅恢复活跃",
	EventFinalized:        "取消流程已定稿",
	EventArchived:         "问卷已归档",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishEvent 发布取消流程事件
func (p *Publisher) PublishEvent(ctx context.Context, msg *EventMessage) error {
	msg.Type = "cancellation_event"

	// 自动填充提示文案
	if msg.Message == "" && msg.Event != "" {
		if message, ok := EventMessages[msg.Event]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event message: %w", err)
	}

	return p.client.Publish(ctx, ChannelCancellationEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅取消流程事件
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*EventMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelCancellationEvents)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var eventMsg EventMessage
			if err := json.Unmarshal([]byte(msg.Payload), &eventMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&eventMsg)
		}
	}
}
