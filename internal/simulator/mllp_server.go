package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/belfioreasia/swemls-aki-prediction/internal/hl7"
	"github.com/belfioreasia/swemls-aki-prediction/internal/mllp"

	"go.uber.org/zap"
)

const (
	acceptPollInterval = 250 * time.Millisecond
	ackReadTimeout     = 50 * time.Millisecond
	shortWriteGap      = 10 * time.Millisecond
)

// MLLPServer MLLP 回放服务。消息列表只读共享，每条连接各自持有回放游标，
// 连接之间除关闭信号外无共享可变状态。
type MLLPServer struct {
	address       string
	messages      [][]byte
	shortMessages bool
	logger        *zap.Logger
}

// NewMLLPServer 创建回放服务
func NewMLLPServer(address string, messages [][]byte, shortMessages bool, logger *zap.Logger) *MLLPServer {
	return &MLLPServer{
		address:       address,
		messages:      messages,
		shortMessages: shortMessages,
		logger:        logger,
	}
}

// Start 监听并接受连接，直到上下文取消才返回
func (s *MLLPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	defer ln.Close()

	s.logger.Info("MLLP replay server started",
		zap.String("address", ln.Addr().String()),
		zap.Int("messages", len(s.messages)),
		zap.Bool("short_messages", s.shortMessages),
	)

	tcpLn := ln.(*net.TCPListener)
	for {
		if ctx.Err() != nil {
			s.logger.Info("MLLP replay server stopped")
			return nil
		}

		// 周期性唤醒以便轮询关闭信号
		if err := tcpLn.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			return err
		}

		conn, err := tcpLn.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		go s.serveConn(ctx, conn)
	}
}

// serveConn 在单条连接上回放全部消息，每条消息等待确认后再继续
func (s *MLLPServer) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Info("Client connected, starting replay",
		zap.String("remote", remote),
	)

	for cursor, message := range s.messages {
		if ctx.Err() != nil {
			return
		}

		if err := s.writeFramed(conn, message); err != nil {
			s.logger.Warn("Failed to send message, dropping client",
				zap.String("remote", remote),
				zap.Int("cursor", cursor),
				zap.Error(err),
			)
			return
		}

		accepted, err := s.awaitAck(ctx, conn)
		if err != nil {
			s.logger.Warn("Failed to read acknowledgment, dropping client",
				zap.String("remote", remote),
				zap.Int("cursor", cursor),
				zap.Error(err),
			)
			return
		}
		// 拒收仅作观测记录，本设计中上游不重发
		if !accepted {
			s.logger.Warn("Message rejected by client",
				zap.String("remote", remote),
				zap.Int("cursor", cursor),
			)
		}
	}

	s.logger.Info("Replay complete",
		zap.String("remote", remote),
		zap.Int("messages", len(s.messages)),
	)
}

// writeFramed 发送单条消息，短消息模式下分两段发送以测试客户端拼帧
func (s *MLLPServer) writeFramed(conn net.Conn, message []byte) error {
	framed := mllp.Frame(message)

	if !s.shortMessages || len(framed) < 2 {
		_, err := conn.Write(framed)
		return err
	}

	half := len(framed) / 2
	if _, err := conn.Write(framed[:half]); err != nil {
		return err
	}
	time.Sleep(shortWriteGap)
	_, err := conn.Write(framed[half:])
	return err
}

// awaitAck 读取恰好一条确认帧并校验其结构
func (s *MLLPServer) awaitAck(ctx context.Context, conn net.Conn) (bool, error) {
	var pending []byte
	buf := make([]byte, 256)

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		if err := conn.SetReadDeadline(time.Now().Add(ackReadTimeout)); err != nil {
			return false, err
		}

		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			messages, remainder, splitErr := mllp.Split(pending)
			if splitErr != nil {
				return false, splitErr
			}
			if len(messages) > 1 {
				return false, fmt.Errorf("expected one acknowledgment frame, got %d", len(messages))
			}
			if len(messages) == 1 {
				if len(remainder) > 0 {
					return false, fmt.Errorf("unexpected %d bytes after acknowledgment", len(remainder))
				}
				return hl7.VerifyAck(messages[0])
			}
			pending = remainder
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return false, err
		}
	}
}
