package service

import (
	"context"
	"time"

	"github.com/belfioreasia/swemls-aki-prediction/internal/cache"
	"github.com/belfioreasia/swemls-aki-prediction/internal/metrics"
	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
	"github.com/belfioreasia/swemls-aki-prediction/internal/pager"
	"github.com/belfioreasia/swemls-aki-prediction/internal/predictor"
	"github.com/belfioreasia/swemls-aki-prediction/internal/reconciler"

	"go.uber.org/zap"
)

// Pipeline 事件处理流水线：匹配 → 特征 → 预测 → 呼叫
type Pipeline struct {
	reconciler *reconciler.Reconciler
	classifier predictor.Classifier
	pager      *pager.Client
	alerts     *cache.AlertCache
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline 创建流水线
func NewPipeline(
	rec *reconciler.Reconciler,
	classifier predictor.Classifier,
	pagerClient *pager.Client,
	alerts *cache.AlertCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		reconciler: rec,
		classifier: classifier,
		pager:      pagerClient,
		alerts:     alerts,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Process 消费单个事件。完整记录在此送入预测，阳性结果触发呼叫。
func (p *Pipeline) Process(ctx context.Context, event models.Event) {
	records := p.reconciler.Handle(ctx, event)

	for _, record := range records {
		features := predictor.Build(record)
		p.metrics.Predictions.Inc()
		for _, value := range record.Latest.Values {
			p.metrics.BloodTestDist.Observe(value)
		}

		if p.classifier.Predict(features) != 1 {
			continue
		}

		p.metrics.PositivePredictions.Inc()
		p.logger.Info("AKI detected, paging clinical team",
			zap.Int("mrn", record.Patient.MRN),
			zap.Float64("creatinine", record.LatestValue()),
			zap.Time("test_time", record.Latest.TestTime),
		)

		// 快照只反映实际送达的呼叫，放弃的报警不落缓存
		if p.pager.Deliver(ctx, record.Patient.MRN, record.Latest.TestTime) {
			p.alerts.RecordAlert(ctx, cache.AlertSnapshot{
				MRN:        record.Patient.MRN,
				TestTime:   record.Latest.TestTime,
				Creatinine: record.LatestValue(),
				PagedAt:    p.now(),
			})
		}
	}
}
