package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

// 历史数据 CSV 中的时间格式
const historyTimeLayout = "2006-01-02 15:04:05"

// LoadHistory 从 CSV 预加载历史血检数据。
// 行格式：mrn,date1,result1,date2,result2,...（宽表，空列表示该患者记录已尽）。
// 库中已有 historical 数据时跳过，保证重启不重复导入。
func LoadHistory(ctx context.Context, path string, tests BloodTestsRepository, logger *zap.Logger) error {
	loaded, err := tests.HasHistorical(ctx)
	if err != nil {
		return err
	}
	if loaded {
		logger.Info("Historical data already loaded, skipping preload")
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // 宽表，每行列数不定

	// 跳过表头
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read history header: %w", err)
	}

	inserted := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read history row: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		mrn, err := strconv.Atoi(row[0])
		if err != nil {
			return fmt.Errorf("bad MRN %q in history file: %w", row[0], err)
		}

		for col := 1; col+1 < len(row); col += 2 {
			if row[col] == "" {
				break
			}
			testTime, err := time.Parse(historyTimeLayout, row[col])
			if err != nil {
				return fmt.Errorf("bad test date %q for MRN %d: %w", row[col], mrn, err)
			}
			value, err := strconv.ParseFloat(row[col+1], 64)
			if err != nil {
				return fmt.Errorf("bad test value %q for MRN %d: %w", row[col+1], mrn, err)
			}

			if err := tests.InsertTest(ctx, models.BloodTest{
				MRN:        mrn,
				TestTime:   testTime,
				Creatinine: value,
				Source:     models.TestSourceHistorical,
			}); err != nil {
				return err
			}
			inserted++
		}
	}

	logger.Info("Historical data loaded into the database",
		zap.String("path", path),
		zap.Int("rows", inserted),
	)
	return nil
}
