package consumer

import "time"

// Backoff 重连退避（从下限开始逐次翻倍，封顶后保持不变）
type Backoff struct {
	floor   time.Duration
	ceiling time.Duration
	current time.Duration
}

// NewBackoff 创建退避器
func NewBackoff(floor, ceiling time.Duration) *Backoff {
	return &Backoff{
		floor:   floor,
		ceiling: ceiling,
	}
}

// Next 返回本次应等待的时长并推进状态
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.floor
		return b.current
	}

	b.current *= 2
	if b.current > b.ceiling {
		b.current = b.ceiling
	}
	return b.current
}

// Reset 连接成功后归零，下次失败从下限重新开始
func (b *Backoff) Reset() {
	b.current = 0
}
