package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

// PostgresPatientsRepo 患者档案仓库的 PostgreSQL 实现
type PostgresPatientsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresPatientsRepo 创建患者仓库
func NewPostgresPatientsRepo(db *sql.DB, logger *zap.Logger) *PostgresPatientsRepo {
	return &PostgresPatientsRepo{db: db, logger: logger}
}

// 确保实现了接口
var _ PatientsRepository = (*PostgresPatientsRepo)(nil)

// UpsertPatient 插入或更新患者档案
func (r *PostgresPatientsRepo) UpsertPatient(ctx context.Context, patient models.Patient) error {
	query := `
		INSERT INTO patients (mrn, name, age, sex, admission_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mrn) DO UPDATE SET
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			sex = EXCLUDED.sex,
			admission_status = EXCLUDED.admission_status
	`

	_, err := r.db.ExecContext(ctx, query,
		patient.MRN,
		patient.Name,
		patient.Age,
		patient.Sex,
		patient.AdmissionStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert patient %d: %w", patient.MRN, err)
	}
	return nil
}

// UpdateStatus 更新入院状态
func (r *PostgresPatientsRepo) UpdateStatus(ctx context.Context, mrn int, status string) error {
	query := `UPDATE patients SET admission_status = $1 WHERE mrn = $2`

	_, err := r.db.ExecContext(ctx, query, status, mrn)
	if err != nil {
		return fmt.Errorf("failed to update patient %d status: %w", mrn, err)
	}
	return nil
}

// GetPatient 按 MRN 查询档案
func (r *PostgresPatientsRepo) GetPatient(ctx context.Context, mrn int) (*models.Patient, error) {
	query := `
		SELECT mrn, name, age, sex, admission_status
		FROM patients
		WHERE mrn = $1
	`

	var patient models.Patient
	var name, sex sql.NullString
	var age sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, mrn).Scan(
		&patient.MRN,
		&name,
		&age,
		&sex,
		&patient.AdmissionStatus,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %d: %w", mrn, err)
	}

	if name.Valid {
		patient.Name = &name.String
	}
	if age.Valid {
		a := int(age.Int64)
		patient.Age = &a
	}
	if sex.Valid {
		patient.Sex = &sex.String
	}
	return &patient, nil
}

// Exists 患者是否已在库中
func (r *PostgresPatientsRepo) Exists(ctx context.Context, mrn int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM patients WHERE mrn = $1)`, mrn).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check patient %d: %w", mrn, err)
	}
	return exists, nil
}
