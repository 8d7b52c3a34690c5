// Package pager 向下游呼叫端点投递 AKI 报警。
// 投递失败永不向摄取路径传播：瞬时失败有界重试，耗尽后计数并静默放弃。
package pager

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/config"
	"github.com/belfioreasia/swemls-aki-prediction/internal/metrics"
)

// 呼叫时间戳格式：纯数字，无分隔符
const pageTimeLayout = "20060102150405"

// Client 呼叫客户端
type Client struct {
	httpClient *resty.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewClient 创建呼叫客户端。
// 重试只针对瞬时结果（超时、连接失败、500）；400 等明确拒绝不重试。
func NewClient(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(fmt.Sprintf("http://%s", cfg.Pager.Address)).
		SetTimeout(cfg.Pager.Timeout).
		SetRetryCount(cfg.Pager.Retries).
		SetRetryWaitTime(cfg.Pager.RetryDelay).
		SetRetryMaxWaitTime(cfg.Pager.RetryDelay).
		SetHeader("Content-Type", "text/plain").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() == http.StatusInternalServerError
		})

	return &Client{
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// Deliver 投递一条报警（病历号 + 最新检验时间），返回是否成功送达。
// 失败不向调用方传播错误，只计数后放弃。
func (c *Client) Deliver(ctx context.Context, mrn int, lastTest time.Time) bool {
	body := fmt.Sprintf("%d,%s", mrn, lastTest.Format(pageTimeLayout))
	c.logger.Info("Paging", zap.String("body", body))

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post("/page")

	if resp != nil && resp.Request.Attempt > 1 {
		c.metrics.AlertRetries.Add(float64(resp.Request.Attempt - 1))
	}

	if err != nil {
		// 重试已耗尽仍是瞬时失败：计数后放弃，绝不阻塞摄取
		c.metrics.IgnoredAlerts.Inc()
		c.logger.Error("Failed to page after retries, dropping alert",
			zap.Int("mrn", mrn),
			zap.Error(err),
		)
		return false
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		c.metrics.AlertsSent.Inc()
		c.logger.Info("Paging successful", zap.Int("mrn", mrn))
		return true
	case http.StatusBadRequest:
		// 请求本身有问题，重试无意义
		c.metrics.IgnoredAlerts.Inc()
		c.logger.Error("Pager rejected request, ignoring alert",
			zap.Int("mrn", mrn),
			zap.Int("status", resp.StatusCode()),
		)
	case http.StatusInternalServerError:
		c.metrics.IgnoredAlerts.Inc()
		c.logger.Error("Pager still failing after retries, dropping alert",
			zap.Int("mrn", mrn),
			zap.Int("status", resp.StatusCode()),
		)
	default:
		c.metrics.IgnoredAlerts.Inc()
		c.logger.Error("Unhandled pager response, ignoring alert",
			zap.Int("mrn", mrn),
			zap.Int("status", resp.StatusCode()),
		)
	}
	return false
}
