// Package consumer 维护到上游 MLLP 服务的长连接并持续摄取 HL7 消息。
// 连接断开或帧错误时按退避策略重连，消息处理永不中断摄取循环。
package consumer

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/belfioreasia/swemls-aki-prediction/internal/config"
	"github.com/belfioreasia/swemls-aki-prediction/internal/hl7"
	"github.com/belfioreasia/swemls-aki-prediction/internal/metrics"
	"github.com/belfioreasia/swemls-aki-prediction/internal/mllp"
	"github.com/belfioreasia/swemls-aki-prediction/internal/models"

	"go.uber.org/zap"
)

// Processor 事件处理器接口（解析成功的事件交由其落库、评估并触发呼叫）
type Processor interface {
	Process(ctx context.Context, event models.Event)
}

// DialFunc 建立到上游的连接（测试时可注入）
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// MLLPConsumer MLLP 消费者
type MLLPConsumer struct {
	config    *config.Config
	parser    *hl7.Parser
	processor Processor
	metrics   *metrics.Metrics
	logger    *zap.Logger
	dial      DialFunc
	now       func() time.Time
}

// NewMLLPConsumer 创建 MLLP 消费者
func NewMLLPConsumer(
	cfg *config.Config,
	parser *hl7.Parser,
	processor Processor,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MLLPConsumer {
	return &MLLPConsumer{
		config:    cfg,
		parser:    parser,
		processor: processor,
		metrics:   m,
		logger:    logger,
		dial: func(ctx context.Context, address string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", address)
		},
		now: time.Now,
	}
}

// Start 启动摄取循环，直到上下文取消才返回
func (c *MLLPConsumer) Start(ctx context.Context) error {
	c.logger.Info("MLLP consumer started",
		zap.String("address", c.config.MLLP.Address),
	)

	for {
		conn, err := c.connect(ctx)
		if err != nil {
			c.logger.Info("MLLP consumer stopped")
			return nil
		}

		err = c.serve(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			c.logger.Info("MLLP consumer stopped")
			return nil
		}

		c.metrics.Reconnections.Inc()
		c.logger.Warn("Connection to MLLP upstream lost, reconnecting",
			zap.Error(err),
		)
	}
}

// connect 带退避地重复拨号，仅在上下文取消时返回错误
func (c *MLLPConsumer) connect(ctx context.Context) (net.Conn, error) {
	backoff := NewBackoff(c.config.MLLP.BackoffFloor, c.config.MLLP.BackoffCeiling)
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt++
		c.metrics.ConnectionTries.Set(float64(attempt))

		conn, err := c.dial(ctx, c.config.MLLP.Address)
		if err == nil {
			// 连接成功后计数器归 1
			c.metrics.ConnectionTries.Set(1)
			c.logger.Info("Connected to MLLP upstream",
				zap.String("address", c.config.MLLP.Address),
				zap.Int("attempt", attempt),
			)
			return conn, nil
		}

		wait := backoff.Next()
		// 首次失败记 Warn，之后降为 Debug 避免刷屏
		if attempt == 1 {
			c.logger.Warn("Failed to connect to MLLP upstream",
				zap.String("address", c.config.MLLP.Address),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		} else {
			c.logger.Debug("Failed to connect to MLLP upstream",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// serve 在单条连接上读取、切帧并处理消息，连接失效时返回错误
func (c *MLLPConsumer) serve(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, c.config.MLLP.BufferSize)
	var pending []byte

	for {
		// 仅在消息边界检查取消，保证在途消息处理完整
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := conn.SetReadDeadline(c.now().Add(c.config.MLLP.ReadTimeout)); err != nil {
			return err
		}

		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			messages, remainder, splitErr := mllp.Split(pending)
			for _, message := range messages {
				if err := c.process(ctx, conn, message); err != nil {
					return err
				}
			}
			if splitErr != nil {
				c.logger.Error("MLLP framing violation, dropping connection",
					zap.Error(splitErr),
				)
				return splitErr
			}
			pending = remainder
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}
	}
}

// process 处理单条消息并回写确认，写失败返回错误触发重连
func (c *MLLPConsumer) process(ctx context.Context, conn net.Conn, payload []byte) error {
	c.metrics.ReceivedMessages.Inc()

	event := c.parser.Parse(payload)
	if event.Accepted() {
		c.processor.Process(ctx, event)
	} else {
		c.metrics.BadMessages.Inc()
		c.logger.Warn("Rejected unparseable HL7 message",
			zap.Error(event.Err),
		)
	}

	ack := mllp.Frame(hl7.BuildAck(event.Accepted(), c.now()))
	if _, err := conn.Write(ack); err != nil {
		return err
	}
	return nil
}
