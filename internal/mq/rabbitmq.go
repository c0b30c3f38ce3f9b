// Package mq 는 주문 정산 이벤트를 RabbitMQ 로 내보낸다. 발행은 fire-and-forget
// 이며 정산 트랜잭션은 발행 결과에 의존하지 않는다.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	NotifyExchange   = "order.notify.exchange"
	NotifyQueue      = "order.notify.queue"
	NotifyRoutingKey = "order.notify"

	reconnectDelay = 3 * time.Second
	publishTimeout = 5 * time.Second
)

// OrderEventMessage 정산 이벤트 메시지.
type OrderEventMessage struct {
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type"` // order_approved / order_canceled / order_failed
	OrderNumber    string `json:"order_number"`
	GuestID        int64  `json:"guest_id"`
	Status         string `json:"status"`
	TotalPaidPrice int64  `json:"total_paid_price"`
	Timestamp      int64  `json:"timestamp"`
}

// RabbitMQ 자동 재연결을 지원하는 발행 클라이언트.
type RabbitMQ struct {
	url    string
	logger *zap.Logger

	conn    *amqp.Connection
	channel *amqp.Channel

	mu          sync.RWMutex
	isConnected bool
	done        chan struct{}
}

func NewRabbitMQ(url string, logger *zap.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		url:    url,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := r.connect(); err != nil {
		return nil, err
	}

	go r.monitorConnection()

	return r, nil
}

func (r *RabbitMQ) connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(NotifyExchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare notify exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(NotifyQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare notify queue: %w", err)
	}
	if err := ch.QueueBind(NotifyQueue, NotifyRoutingKey, NotifyExchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("bind notify queue: %w", err)
	}

	r.conn = conn
	r.channel = ch
	r.isConnected = true

	r.logger.Info("rabbitmq connected")
	return nil
}

// monitorConnection 연결이 끊기면 다시 붙을 때까지 재시도한다.
func (r *RabbitMQ) monitorConnection() {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		if conn == nil {
			time.Sleep(reconnectDelay)
			continue
		}

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-r.done:
			return
		case err := <-notifyClose:
			if err != nil {
				r.logger.Warn("rabbitmq connection lost", zap.Error(err))
			}

			r.mu.Lock()
			r.isConnected = false
			r.mu.Unlock()

			r.reconnect()
		}
	}
}

func (r *RabbitMQ) reconnect() {
	attempt := 0
	for {
		select {
		case <-r.done:
			return
		default:
		}

		attempt++
		if err := r.connect(); err != nil {
			r.logger.Warn("rabbitmq reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			time.Sleep(reconnectDelay)
			continue
		}
		return
	}
}

func (r *RabbitMQ) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isConnected
}

// PublishOrderEvent 정산 이벤트를 발행한다. EventID 가 비어 있으면 채워 넣는다.
func (r *RabbitMQ) PublishOrderEvent(msg *OrderEventMessage) error {
	r.mu.RLock()
	if !r.isConnected {
		r.mu.RUnlock()
		return fmt.Errorf("rabbitmq not connected")
	}
	ch := r.channel
	r.mu.RUnlock()

	if msg.EventID == "" {
		msg.EventID = uuid.New().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx, NotifyExchange, NotifyRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.EventID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

func (r *RabbitMQ) Close() {
	close(r.done)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn("close rabbitmq channel", zap.Error(err))
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			r.logger.Warn("close rabbitmq connection", zap.Error(err))
		}
	}
	r.isConnected = false
}
