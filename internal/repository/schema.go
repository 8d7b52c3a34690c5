package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema 初始化 patients 与 blood_tests 表（幂等）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			mrn INTEGER PRIMARY KEY,
			name TEXT,
			age INTEGER,
			sex TEXT,
			admission_status TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS blood_tests (
			id SERIAL PRIMARY KEY,
			mrn INTEGER NOT NULL,
			test_date TIMESTAMP NOT NULL,
			creatinine_level DOUBLE PRECISION NOT NULL,
			test_source TEXT NOT NULL CHECK (test_source IN ('historical', 'new'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blood_tests_mrn ON blood_tests (mrn, test_date DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
