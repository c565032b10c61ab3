package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/pkg/log"
)

// 投递计数与死信原因通过消息头携带。
const (
	headerDeliveryCount         = "x-delivery-count"
	headerDeadLetterReason      = "x-deadletter-reason"
	headerDeadLetterDescription = "x-deadletter-description"
)

// Producer 发送文件处理消息到 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// EnqueueFile 发送一个文件处理消息。以 file_id 作为分区键，
// 保证同一文件的重复消息落在同一分区内有序。
func (p *Producer) EnqueueFile(ctx context.Context, msg FileMessage) error {
	msg.MessageType = MessageTypeDropboxFile
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.FileID),
		Value: body,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Delivery 表示一次收到的消息投递。
// Count 从 1 开始计数，每次放回重投递时加一。
type Delivery struct {
	Body  []byte
	Count int

	raw kafka.Message
}

// Receiver 以“锁定-了结”的方式消费工作队列：
// 消息在了结（Complete / Abandon / DeadLetter）之前不会提交 offset。
// Abandon 把消息带着递增后的投递计数重新发布回主题再提交原消息，
// 这样失败的消息会立刻重新可见，而消费组的游标不会被卡住。
type Receiver struct {
	reader  *kafka.Reader
	retry   *kafka.Writer
	dead    *kafka.Writer
	maxWait time.Duration
}

// NewReceiver 初始化队列接收方。maxWait 是单次空轮询的最长阻塞时间。
func NewReceiver(cfg config.KafkaConfig, maxWait time.Duration) *Receiver {
	return &Receiver{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  []string{cfg.Brokers},
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}),
		retry: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		dead: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers),
			Topic:    cfg.DeadLetterTopic(),
			Balancer: &kafka.LeastBytes{},
		},
		maxWait: maxWait,
	}
}

// Receive 阻塞等待下一条消息，最长等待 maxWait。
// 等待超时不是错误，返回 (nil, nil) 表示一次空轮询。
func (r *Receiver) Receive(ctx context.Context) (*Delivery, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.maxWait)
	defer cancel()

	m, err := r.reader.FetchMessage(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil // 空轮询
		}
		return nil, err
	}

	return &Delivery{
		Body:  m.Value,
		Count: deliveryCount(m),
		raw:   m,
	}, nil
}

// Complete 确认消息处理成功，将其从队列中永久移除。
func (r *Receiver) Complete(ctx context.Context, d *Delivery) error {
	return r.reader.CommitMessages(ctx, d.raw)
}

// Abandon 放回一条处理失败的消息：带着递增后的投递计数重新发布，
// 然后提交原消息。新副本立刻对消费组可见。
func (r *Receiver) Abandon(ctx context.Context, d *Delivery) error {
	copyMsg := kafka.Message{
		Key:   d.raw.Key,
		Value: d.raw.Value,
		Headers: []kafka.Header{
			{Key: headerDeliveryCount, Value: []byte(strconv.Itoa(d.Count + 1))},
		},
	}
	if err := r.retry.WriteMessages(ctx, copyMsg); err != nil {
		return err
	}
	return r.reader.CommitMessages(ctx, d.raw)
}

// DeadLetter 将消息移入死信主题并附上机器可读的原因和人类可读的描述，
// 然后提交原消息。
func (r *Receiver) DeadLetter(ctx context.Context, d *Delivery, reason, description string) error {
	deadMsg := kafka.Message{
		Key:   d.raw.Key,
		Value: d.raw.Value,
		Headers: []kafka.Header{
			{Key: headerDeliveryCount, Value: []byte(strconv.Itoa(d.Count))},
			{Key: headerDeadLetterReason, Value: []byte(reason)},
			{Key: headerDeadLetterDescription, Value: []byte(description)},
		},
	}
	if err := r.dead.WriteMessages(ctx, deadMsg); err != nil {
		return err
	}
	log.Errorf("[Queue] 消息已进入死信队列, reason: %s, 投递次数: %d", reason, d.Count)
	return r.reader.CommitMessages(ctx, d.raw)
}

// Close 关闭接收方持有的全部连接。
func (r *Receiver) Close() error {
	errReader := r.reader.Close()
	errRetry := r.retry.Close()
	errDead := r.dead.Close()
	if errReader != nil {
		return errReader
	}
	if errRetry != nil {
		return errRetry
	}
	return errDead
}

// deliveryCount 从消息头解析投递计数，首次投递没有消息头，计为 1。
func deliveryCount(m kafka.Message) int {
	for _, h := range m.Headers {
		if h.Key == headerDeliveryCount {
			if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}
