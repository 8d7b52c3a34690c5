// Package service 组装 AKI 检测服务的各层组件并管理其生命周期。
package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/belfioreasia/swemls-aki-prediction/internal/cache"
	"github.com/belfioreasia/swemls-aki-prediction/internal/config"
	"github.com/belfioreasia/swemls-aki-prediction/internal/consumer"
	"github.com/belfioreasia/swemls-aki-prediction/internal/hl7"
	"github.com/belfioreasia/swemls-aki-prediction/internal/metrics"
	"github.com/belfioreasia/swemls-aki-prediction/internal/pager"
	"github.com/belfioreasia/swemls-aki-prediction/internal/predictor"
	"github.com/belfioreasia/swemls-aki-prediction/internal/reconciler"
	"github.com/belfioreasia/swemls-aki-prediction/internal/repository"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// 报警快照在 Redis 中的保留时长
const alertCacheTTL = 24 * time.Hour

// DetectorService AKI 检测服务（整合各层）
type DetectorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	metrics       *metrics.Metrics
	patientsRepo  repository.PatientsRepository
	testsRepo     repository.BloodTestsRepository
	reconciler    *reconciler.Reconciler
	pipeline      *Pipeline
	mllpConsumer  *consumer.MLLPConsumer
	metricsServer *http.Server
}

// NewDetectorService 创建检测服务
func NewDetectorService(cfg *config.Config, logger *zap.Logger) (*DetectorService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试数据库连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ctx := context.Background()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	// 2. 连接 Redis（可选：未配置地址时禁用报警缓存）
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	// 3. 创建 Repository 层
	patientsRepo := repository.NewPostgresPatientsRepo(db, logger)
	testsRepo := repository.NewPostgresBloodTestsRepo(db, logger)

	// 4. 预加载历史血检数据
	if cfg.HistoryPath != "" {
		if err := repository.LoadHistory(ctx, cfg.HistoryPath, testsRepo, logger); err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	// 5. 创建处理流水线
	m := metrics.New()
	rec := reconciler.New(patientsRepo, testsRepo, m, logger)
	alerts := cache.NewAlertCache(redisClient, alertCacheTTL, logger)
	pipeline := NewPipeline(
		rec,
		predictor.NewDefaultClassifier(),
		pager.NewClient(cfg, m, logger),
		alerts,
		m,
		logger,
	)

	// 6. 创建 MLLP 消费者
	mllpConsumer := consumer.NewMLLPConsumer(cfg, hl7.NewParser(logger), pipeline, m, logger)

	svc := &DetectorService{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		logger:       logger,
		metrics:      m,
		patientsRepo: patientsRepo,
		testsRepo:    testsRepo,
		reconciler:   rec,
		pipeline:     pipeline,
		mllpConsumer: mllpConsumer,
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		svc.metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	return svc, nil
}

// Start 启动服务，阻塞直到上下文取消
func (s *DetectorService) Start(ctx context.Context) error {
	s.logger.Info("Starting AKI detector service",
		zap.String("mllp_address", s.config.MLLP.Address),
		zap.String("pager_address", s.config.Pager.Address),
	)

	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("Metrics server failed",
					zap.Error(err),
				)
			}
		}()
	}

	if err := s.mllpConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to run mllp consumer: %w", err)
	}

	return nil
}

// Stop 停止服务并输出停机诊断
func (s *DetectorService) Stop() error {
	s.logger.Info("Stopping AKI detector service",
		zap.Int("unmatched_test_results", s.reconciler.PendingCount()),
	)

	if s.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shut down metrics server",
				zap.Error(err),
			)
		}
	}

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	// 关闭 Redis 连接
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	return nil
}
