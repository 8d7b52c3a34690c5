package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

func writeHistoryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHistory_WideRows(t *testing.T) {
	path := writeHistoryFile(t,
		"mrn,date1,result1,date2,result2\n"+
			"100,2024-01-01 06:12:00,98.2,2024-01-05 09:00:00,101.5\n"+
			"200,2024-02-01 10:00:00,87.0,,\n")

	tests := NewMemoryBloodTestsRepo()
	err := LoadHistory(context.Background(), path, tests, zap.NewNop())
	require.NoError(t, err)

	first, err := tests.GetTestsByMRN(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, first, 2)
	// 从新到旧
	assert.Equal(t, 101.5, first[0].Creatinine)
	assert.Equal(t, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), first[0].TestTime)
	assert.Equal(t, models.TestSourceHistorical, first[0].Source)

	second, err := tests.GetTestsByMRN(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, second, 1)
}

func TestLoadHistory_SkipsWhenAlreadyLoaded(t *testing.T) {
	path := writeHistoryFile(t, "mrn,date1,result1\n100,2024-01-01 06:12:00,98.2\n")

	tests := NewMemoryBloodTestsRepo()
	require.NoError(t, tests.InsertTest(context.Background(), models.BloodTest{
		MRN:        999,
		TestTime:   time.Now(),
		Creatinine: 90,
		Source:     models.TestSourceHistorical,
	}))

	err := LoadHistory(context.Background(), path, tests, zap.NewNop())
	require.NoError(t, err)

	// 已有 historical 数据时不再导入
	loaded, err := tests.GetTestsByMRN(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadHistory_BadValue(t *testing.T) {
	path := writeHistoryFile(t, "mrn,date1,result1\n100,2024-01-01 06:12:00,not-a-number\n")

	err := LoadHistory(context.Background(), path, NewMemoryBloodTestsRepo(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad test value")
}

func TestLoadHistory_MissingFile(t *testing.T) {
	err := LoadHistory(context.Background(), "/nonexistent/history.csv", NewMemoryBloodTestsRepo(), zap.NewNop())
	require.Error(t, err)
}
