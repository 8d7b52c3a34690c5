// Package reconciler 将独立到达的两类事件（PAS 入院/出院、LIMS 血检）
// 按病历号匹配为完整的可预测记录。不假设到达顺序：血检先到时挂起等待，
// 入院先到时写库等待血检，两种顺序收敛到同一记录形态。
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/metrics"
	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
	"github.com/belfioreasia/swemls-aki-prediction/internal/repository"
)

// 挂起队列规模告警阈值：参考实现中无主血检永不过期（已知泄漏，保留语义），
// 超过阈值时记日志使泄漏可见
const pendingWarnThreshold = 1000

// activeResult 匹配集条目。入库进度与历史快照随条目保存，
// 构建失败重试时不重复入库、不把本消息已入库的行当作历史。
type activeResult struct {
	data       models.TestResultData
	persisted  int // data.Values 中已入库的数量
	historical []models.BloodTest
	fetched    bool
}

// Reconciler 匹配引擎。状态只被单一摄取循环持有，无需加锁。
type Reconciler struct {
	patients repository.PatientsRepository
	tests    repository.BloodTestsRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// active: 患者已在库中、等待产出记录的血检数据
	active map[int]*activeResult
	// pending: 患者尚不在库中的血检数据，等待后续 PAS 消息
	pending map[int]models.TestResultData

	pendingWarned bool
}

// New 创建匹配引擎
func New(
	patients repository.PatientsRepository,
	tests repository.BloodTestsRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		patients: patients,
		tests:    tests,
		metrics:  m,
		logger:   logger,
		active:   map[int]*activeResult{},
		pending:  map[int]models.TestResultData{},
	}
}

// Handle 消费一个事件，返回本次产出的全部完整记录。
// 单条消息级的存储失败记录日志后继续，不中断摄取。
func (r *Reconciler) Handle(ctx context.Context, event models.Event) []models.ReadyRecord {
	switch event.Kind {
	case models.EventAdmitted:
		r.handleAdmission(ctx, event)
	case models.EventDischarged:
		r.handleDischarge(ctx, event)
	case models.EventTestResult:
		r.handleTestResult(ctx, event)
	default:
		// Unknown/Error 事件不参与匹配
		return nil
	}

	return r.scan(ctx)
}

// PendingCount 当前挂起的无主血检数量（诊断用）
func (r *Reconciler) PendingCount() int {
	return len(r.pending)
}

// handleAdmission 入院：写穿存储，再提升挂起的血检
func (r *Reconciler) handleAdmission(ctx context.Context, event models.Event) {
	patient := models.Patient{
		MRN:             event.MRN,
		AdmissionStatus: models.StatusAdmitted,
	}
	if event.Admission != nil {
		patient.Name = event.Admission.Name
		patient.Age = event.Admission.Age
		patient.Sex = event.Admission.Sex
	}

	if err := r.patients.UpsertPatient(ctx, patient); err != nil {
		r.logger.Error("Failed to store admission",
			zap.Int("mrn", event.MRN),
			zap.Error(err),
		)
		return
	}
	r.promotePending(event.MRN)
}

// handleDischarge 出院：更新状态，同样提升挂起的血检
func (r *Reconciler) handleDischarge(ctx context.Context, event models.Event) {
	if err := r.patients.UpdateStatus(ctx, event.MRN, models.StatusDischarged); err != nil {
		r.logger.Error("Failed to store discharge",
			zap.Int("mrn", event.MRN),
			zap.Error(err),
		)
		return
	}
	r.promotePending(event.MRN)
}

// handleTestResult 血检：患者在库则直接进入匹配集，否则挂起
func (r *Reconciler) handleTestResult(ctx context.Context, event models.Event) {
	r.metrics.ReceivedTestResults.Inc()

	// 不带数值的血检消息确认即可，不参与匹配
	if len(event.TestResult.Values) == 0 {
		r.logger.Warn("Lab result message with no values, ignoring",
			zap.Int("mrn", event.MRN),
		)
		return
	}

	exists, err := r.patients.Exists(ctx, event.MRN)
	if err != nil {
		r.logger.Error("Failed to look up patient, deferring test result",
			zap.Int("mrn", event.MRN),
			zap.Error(err),
		)
		// 查询瞬时失败按未知患者处理，等待后续 PAS 消息时再提升
		r.pending[event.MRN] = *event.TestResult
		r.warnPendingGrowth()
		return
	}

	if exists {
		r.active[event.MRN] = &activeResult{data: *event.TestResult}
	} else {
		r.pending[event.MRN] = *event.TestResult
		r.warnPendingGrowth()
	}
}

// promotePending 把挂起的血检移入匹配集（移动而非复制）
func (r *Reconciler) promotePending(mrn int) {
	if data, ok := r.pending[mrn]; ok {
		r.active[mrn] = &activeResult{data: data}
		delete(r.pending, mrn)
	}
}

// scan 扫描匹配集：每个条目恰好产出一条记录并从集合移除。
// 同一血检消息绝不产出第二条记录（幂等）。
func (r *Reconciler) scan(ctx context.Context) []models.ReadyRecord {
	var records []models.ReadyRecord

	for mrn, entry := range r.active {
		record, err := r.buildRecord(ctx, mrn, entry)
		if errors.Is(err, repository.ErrPatientNotFound) {
			// 出院消息可能提升了从未入院的患者的血检：档案不存在就退回挂起
			r.logger.Warn("No patient record for promoted test result, re-filing as pending",
				zap.Int("mrn", mrn),
			)
			r.pending[mrn] = entry.data
			delete(r.active, mrn)
			continue
		}
		if err != nil {
			r.logger.Error("Failed to build ready record, will retry on next event",
				zap.Int("mrn", mrn),
				zap.Error(err),
			)
			continue
		}
		records = append(records, *record)
		delete(r.active, mrn)
	}

	return records
}

// buildRecord 组装完整记录：读档案，取历史（新值入库之前），再持久化新值
func (r *Reconciler) buildRecord(ctx context.Context, mrn int, entry *activeResult) (*models.ReadyRecord, error) {
	patient, err := r.patients.GetPatient(ctx, mrn)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient %d: %w", mrn, err)
	}

	// 历史只读一次并随条目快照，重试时不把本消息已入库的行计入历史
	if !entry.fetched {
		historical, err := r.tests.GetTestsByMRN(ctx, mrn)
		if err != nil {
			return nil, err
		}
		entry.historical = historical
		entry.fetched = true
	}

	// 同一消息的多个数值各存一行，但只产出一条记录。
	// 入库进度随条目推进，部分失败重试时已入库的行不再重复写入
	for entry.persisted < len(entry.data.Values) {
		if err := r.tests.InsertTest(ctx, models.BloodTest{
			MRN:        mrn,
			TestTime:   entry.data.TestTime,
			Creatinine: entry.data.Values[entry.persisted],
			Source:     models.TestSourceNew,
		}); err != nil {
			return nil, err
		}
		entry.persisted++
	}

	return &models.ReadyRecord{
		Patient:    *patient,
		Latest:     entry.data,
		Historical: entry.historical,
	}, nil
}

func (r *Reconciler) warnPendingGrowth() {
	if len(r.pending) > pendingWarnThreshold && !r.pendingWarned {
		r.pendingWarned = true
		r.logger.Warn("Pending test results growing without matching patients",
			zap.Int("pending", len(r.pending)),
		)
	}
}
