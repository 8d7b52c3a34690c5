package repository

import (
	"context"
	"errors"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

// ErrPatientNotFound 患者不在库中。对血检消息这不是错误，
// 而是进入 pending 匹配路径的正常信号。
var ErrPatientNotFound = errors.New("patient not found")

// PatientsRepository 患者档案仓库
type PatientsRepository interface {
	// UpsertPatient 插入或更新患者档案（入院写穿）
	UpsertPatient(ctx context.Context, patient models.Patient) error
	// UpdateStatus 更新入院状态（出院）
	UpdateStatus(ctx context.Context, mrn int, status string) error
	// GetPatient 按 MRN 查询档案，不存在返回 ErrPatientNotFound
	GetPatient(ctx context.Context, mrn int) (*models.Patient, error)
	// Exists 患者是否已在库中
	Exists(ctx context.Context, mrn int) (bool, error)
}

// BloodTestsRepository 血检记录仓库
type BloodTestsRepository interface {
	// InsertTest 插入一条血检记录
	InsertTest(ctx context.Context, test models.BloodTest) error
	// GetTestsByMRN 按 MRN 查询全部血检记录，时间从新到旧
	GetTestsByMRN(ctx context.Context, mrn int) ([]models.BloodTest, error)
	// HasHistorical 是否已预加载过历史数据
	HasHistorical(ctx context.Context) (bool, error)
}
