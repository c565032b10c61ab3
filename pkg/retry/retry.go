// Package retry 提供一个统一的重试策略，供所有可重试的 I/O 操作复用。
package retry

import (
	"context"
	"math"
	"time"
)

// Policy 描述一次有界的指数退避重试：最多 MaxAttempts 次尝试，
// 第 n 次失败后等待 DelayBase^n 秒（n 从 0 开始）。
type Policy struct {
	MaxAttempts int
	DelayBase   float64

	// Sleep 可在测试中注入；为 nil 时使用带 context 的真实等待。
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay 返回第 attempt 次失败后的退避时长。
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(math.Pow(p.DelayBase, float64(attempt)) * float64(time.Second))
}

// Do 执行 op，失败则按策略退避重试，重试耗尽时返回最后一次的错误。
func (p Policy) Do(ctx context.Context, op func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = waitCtx
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < p.MaxAttempts-1 {
			if err := sleep(ctx, p.Delay(attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func waitCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
