// Package worker 实现了工作队列的消费循环。
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dropbox-rag-go/internal/pipeline"
	"dropbox-rag-go/pkg/log"
	"dropbox-rag-go/pkg/queue"
)

// deadLetterReason 是投递次数超限时写入死信消息的机器可读原因。
const deadLetterReason = "MaxDeliveryCountExceeded"

// MessageQueue 是消费循环需要的队列能力。
type MessageQueue interface {
	Receive(ctx context.Context) (*queue.Delivery, error)
	Complete(ctx context.Context, d *queue.Delivery) error
	Abandon(ctx context.Context, d *queue.Delivery) error
	DeadLetter(ctx context.Context, d *queue.Delivery, reason, description string) error
}

// FileProcessor 是消费循环需要的文件处理能力。
type FileProcessor interface {
	Process(ctx context.Context, msg queue.FileMessage) (pipeline.Result, error)
}

// StatusTracker 是消费循环需要的状态机写入能力。
type StatusTracker interface {
	MarkProcessing(id string) error
	MarkCompleted(id, markdownKey string, chunkCount int, seconds float64) error
	MarkFailed(id, lastError string)
}

// Consumer 串行消费工作队列：收一条、处理一条、了结一条。
// 消息的了结方式只取决于处理结果和投递计数：
// 成功则确认；失败且投递计数达到上限则死信；否则放回重投递。
type Consumer struct {
	queue           MessageQueue
	processor       FileProcessor
	tracker         StatusTracker
	maxReceiveCount int

	// pause 可在测试中注入，默认是带 context 的真实等待。
	pause func(ctx context.Context, d time.Duration)
}

// NewConsumer 创建消费者。
func NewConsumer(q MessageQueue, p FileProcessor, t StatusTracker, maxReceiveCount int) *Consumer {
	return &Consumer{
		queue:           q,
		processor:       p,
		tracker:         t,
		maxReceiveCount: maxReceiveCount,
		pause:           pauseCtx,
	}
}

// Run 运行消费循环，直到 ctx 被取消。取消只在两次接收之间生效，
// 已经开始处理的消息会先了结完。
func (c *Consumer) Run(ctx context.Context) error {
	log.Infof("[Consumer] 消费循环启动, 投递次数上限: %d", c.maxReceiveCount)
	for {
		if ctx.Err() != nil {
			log.Infof("[Consumer] 收到退出信号, 消费循环结束")
			return nil
		}

		d, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Infof("[Consumer] 收到退出信号, 消费循环结束")
				return nil
			}
			// 传输层错误不终止循环，稍作等待避免空转刷错误日志
			log.Errorf("[Consumer] 接收消息失败: %v", err)
			c.pause(ctx, 5*time.Second)
			continue
		}
		if d == nil {
			continue // 空轮询
		}

		c.handle(ctx, d)
	}
}

// handle 处理一条投递并了结它。
func (c *Consumer) handle(ctx context.Context, d *queue.Delivery) {
	procErr := c.process(ctx, d)
	c.settle(ctx, d, procErr)
}

// process 解析消息并执行处理管道，同步维护文件记录的状态机。
func (c *Consumer) process(ctx context.Context, d *queue.Delivery) error {
	var msg queue.FileMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := c.tracker.MarkProcessing(msg.FileID); err != nil {
		return err
	}

	start := time.Now()
	res, err := c.processor.Process(ctx, msg)
	if err != nil {
		log.Errorf("[Consumer] 处理文件失败, fileID: %s, 阶段: %s, error: %v",
			msg.FileID, pipeline.KindOf(err), err)
		c.tracker.MarkFailed(msg.FileID, err.Error())
		return err
	}

	if err := c.tracker.MarkCompleted(msg.FileID, res.MarkdownKey, res.ChunkCount, time.Since(start).Seconds()); err != nil {
		// 终态写不进去等同于持久化失败，让消息走重投递
		c.tracker.MarkFailed(msg.FileID, err.Error())
		return &pipeline.Error{Kind: pipeline.KindPersistence, Err: err}
	}
	return nil
}

// settle 按处理结果和投递计数了结消息。了结本身失败时只记日志：
// offset 未提交，消息之后还会回来。
func (c *Consumer) settle(ctx context.Context, d *queue.Delivery, procErr error) {
	var err error
	switch {
	case procErr == nil:
		err = c.queue.Complete(ctx, d)
	case d.Count >= c.maxReceiveCount:
		description := fmt.Sprintf("message failed processing after %d deliveries: %v", d.Count, procErr)
		err = c.queue.DeadLetter(ctx, d, deadLetterReason, description)
	default:
		err = c.queue.Abandon(ctx, d)
	}
	if err != nil {
		log.Errorf("[Consumer] 了结消息失败: %v", err)
		c.pause(ctx, time.Second)
	}
}

func pauseCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
