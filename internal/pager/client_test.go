package pager

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/config"
	"github.com/belfioreasia/swemls-aki-prediction/internal/metrics"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pager.Address = strings.TrimPrefix(serverURL, "http://")
	cfg.Pager.Timeout = 1 * time.Second
	cfg.Pager.Retries = 2
	cfg.Pager.RetryDelay = 10 * time.Millisecond

	return NewClient(cfg, metrics.New(), zap.NewNop())
}

func TestDeliver_Success(t *testing.T) {
	var calls atomic.Int32
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/page", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	delivered := client.Deliver(context.Background(), 100, time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC))

	assert.True(t, delivered)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "100,20240615103000", body)
}

// 持续瞬时失败：恰好 1 次初始 + 2 次重试，然后静默放弃
func TestDeliver_RetryBound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	delivered := client.Deliver(context.Background(), 100, time.Now())

	assert.False(t, delivered)
	assert.Equal(t, int32(3), calls.Load())
}

// 400 是明确拒绝：不重试
func TestDeliver_BadRequestNoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	delivered := client.Deliver(context.Background(), 100, time.Now())

	assert.False(t, delivered)
	assert.Equal(t, int32(1), calls.Load())
}

// 瞬时失败后恢复：重试成功
func TestDeliver_RecoversAfterTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	delivered := client.Deliver(context.Background(), 100, time.Now())

	assert.True(t, delivered)
	assert.Equal(t, int32(2), calls.Load())
}

// 下游完全不可达：同样静默放弃
func TestDeliver_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关掉，制造拒绝连接

	client := newTestClient(t, server.URL)
	require.NotPanics(t, func() {
		assert.False(t, client.Deliver(context.Background(), 100, time.Now()))
	})
}
