package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"recruit-dashboard/internal/config"
	applogger "recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/tracing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var rabbitTracer = otel.Tracer("recruit-dashboard/storage/rabbitmq")

// RabbitMQ 候选人事件的发布端，只负责往 topic 交换机投递
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool
	exchange    string
	timeout     time.Duration
	log         zerolog.Logger
}

// NewRabbitMQ 建立连接并声明事件交换机
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}
	if cfg.EventsExchange == "" {
		return nil, fmt.Errorf("RabbitMQ events_exchange不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		exchange: cfg.EventsExchange,
		timeout:  config.GetDuration(cfg.PublishTimeout, 3*time.Second),
		log:      applogger.Component("rabbitmq"),
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, errPool := conn.Channel()
			if errPool != nil {
				mq.log.Error().Err(errPool).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	if err := mq.ensureExchange(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	mq.log.Info().Str("exchange", mq.exchange).Msg("已连接到RabbitMQ")
	return mq, nil
}

func (r *RabbitMQ) getChannel() (*amqp.Channel, error) {
	if v := r.channelPool.Get(); v != nil {
		if ch, ok := v.(*amqp.Channel); ok && !ch.IsClosed() {
			return ch, nil
		}
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}
	return ch, nil
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

func (r *RabbitMQ) ensureExchange() error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	defer r.putChannel(ch)

	if err := ch.ExchangeDeclare(r.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明交换机 %s 失败: %w", r.exchange, err)
	}
	return nil
}

// PublishJSON 把 data 序列化为 JSON 发布到事件交换机
func (r *RabbitMQ) PublishJSON(ctx context.Context, routingKey string, data interface{}) error {
	ctx, span := rabbitTracer.Start(ctx, "RabbitMQ.PublishJSON", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.destination.name", r.exchange),
		attribute.String("messaging.rabbitmq.routing_key", routingKey),
	)

	body, err := json.Marshal(data)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeMessaging)
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	ch, err := r.getChannel()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeMessaging)
		return err
	}
	defer r.putChannel(ch)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeMessaging)
		return fmt.Errorf("发布消息到 %s/%s 失败: %w", r.exchange, routingKey, err)
	}
	return nil
}

// Ping 连接是否仍然可用
func (r *RabbitMQ) Ping(context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ连接已关闭")
	}
	return nil
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}
