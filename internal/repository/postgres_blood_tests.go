package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

// PostgresBloodTestsRepo 血检记录仓库的 PostgreSQL 实现
type PostgresBloodTestsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresBloodTestsRepo 创建血检仓库
func NewPostgresBloodTestsRepo(db *sql.DB, logger *zap.Logger) *PostgresBloodTestsRepo {
	return &PostgresBloodTestsRepo{db: db, logger: logger}
}

// 确保实现了接口
var _ BloodTestsRepository = (*PostgresBloodTestsRepo)(nil)

// InsertTest 插入一条血检记录
func (r *PostgresBloodTestsRepo) InsertTest(ctx context.Context, test models.BloodTest) error {
	query := `
		INSERT INTO blood_tests (mrn, test_date, creatinine_level, test_source)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		test.MRN,
		test.TestTime,
		test.Creatinine,
		test.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert blood test for %d: %w", test.MRN, err)
	}
	return nil
}

// GetTestsByMRN 按 MRN 查询全部血检记录，时间从新到旧
func (r *PostgresBloodTestsRepo) GetTestsByMRN(ctx context.Context, mrn int) ([]models.BloodTest, error) {
	query := `
		SELECT mrn, test_date, creatinine_level, test_source
		FROM blood_tests
		WHERE mrn = $1
		ORDER BY test_date DESC
	`

	rows, err := r.db.QueryContext(ctx, query, mrn)
	if err != nil {
		return nil, fmt.Errorf("failed to query blood tests for %d: %w", mrn, err)
	}
	defer rows.Close()

	var tests []models.BloodTest
	for rows.Next() {
		var test models.BloodTest
		if err := rows.Scan(&test.MRN, &test.TestTime, &test.Creatinine, &test.Source); err != nil {
			return nil, fmt.Errorf("failed to scan blood test row: %w", err)
		}
		tests = append(tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blood test rows: %w", err)
	}
	return tests, nil
}

// HasHistorical 是否已预加载过历史数据
func (r *PostgresBloodTestsRepo) HasHistorical(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM blood_tests WHERE test_source = 'historical')`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check historical data: %w", err)
	}
	return exists, nil
}
