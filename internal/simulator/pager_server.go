package simulator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const pageTimestampLayout = "20060102150405"

// PagerReceiver 呼叫接收端。/page 接收报警，/healthy 存活探针，
// /shutdown 触发本接收端的优雅退出。
type PagerReceiver struct {
	logger       *zap.Logger
	server       *http.Server
	shutdown     chan struct{}
	shutdownOnce sync.Once

	pagesReceived atomic.Int64
}

// NewPagerReceiver 创建呼叫接收端
func NewPagerReceiver(address string, logger *zap.Logger) *PagerReceiver {
	p := &PagerReceiver{
		logger:   logger,
		shutdown: make(chan struct{}),
	}

	// 路由表
	mux := http.NewServeMux()
	mux.HandleFunc("/page", p.handlePage)
	mux.HandleFunc("/healthy", p.handleHealthy)
	mux.HandleFunc("/shutdown", p.handleShutdown)

	p.server = &http.Server{Addr: address, Handler: mux}
	return p
}

// Start 启动接收端，阻塞直到上下文取消或收到 /shutdown
func (p *PagerReceiver) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("Pager receiver started",
			zap.String("address", p.server.Addr),
		)
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("pager receiver failed: %w", err)
	case <-ctx.Done():
	case <-p.shutdown:
		p.logger.Info("Shutdown requested via HTTP")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down pager receiver: %w", err)
	}

	p.logger.Info("Pager receiver stopped",
		zap.Int64("pages_received", p.pagesReceived.Load()),
	)
	return nil
}

// PagesReceived 已接收的呼叫数
func (p *PagerReceiver) PagesReceived() int64 {
	return p.pagesReceived.Load()
}

// handlePage 接收一条呼叫：正文为 "<mrn>" 或 "<mrn>,<YYYYMMDDHHMMSS>"
func (p *PagerReceiver) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	mrn, testTime, reason := parsePageBody(string(body))
	if reason != "" {
		p.logger.Warn("Rejected malformed page",
			zap.String("body", string(body)),
			zap.String("reason", reason),
		)
		http.Error(w, reason, http.StatusBadRequest)
		return
	}

	p.pagesReceived.Add(1)
	p.logger.Info("Page received",
		zap.Int("mrn", mrn),
		zap.Time("test_time", testTime),
	)
	w.WriteHeader(http.StatusOK)
}

func (p *PagerReceiver) handleHealthy(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (p *PagerReceiver) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)

	p.shutdownOnce.Do(func() { close(p.shutdown) })
}

// parsePageBody 校验呼叫正文，返回失败原因（为空表示合法）
func parsePageBody(body string) (mrn int, testTime time.Time, reason string) {
	parts := strings.Split(strings.TrimSpace(body), ",")
	if len(parts) > 2 {
		return 0, time.Time{}, "expected at most mrn,timestamp"
	}

	mrn, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, time.Time{}, fmt.Sprintf("invalid mrn %q", parts[0])
	}

	if len(parts) == 2 {
		testTime, err = time.Parse(pageTimestampLayout, parts[1])
		if err != nil {
			return 0, time.Time{}, fmt.Sprintf("invalid timestamp %q", parts[1])
		}
	}

	return mrn, testTime, ""
}
