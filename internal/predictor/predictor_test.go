package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

func record(sex string, age int, historical []float64, latest ...float64) models.ReadyRecord {
	tests := make([]models.BloodTest, 0, len(historical))
	for _, v := range historical {
		tests = append(tests, models.BloodTest{MRN: 1, Creatinine: v, Source: models.TestSourceHistorical})
	}
	return models.ReadyRecord{
		Patient: models.Patient{MRN: 1, Age: &age, Sex: &sex, AdmissionStatus: models.StatusAdmitted},
		Latest: models.TestResultData{
			Values:   latest,
			TestTime: time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC),
		},
		Historical: tests,
	}
}

func TestBuild_Features(t *testing.T) {
	f := Build(record("F", 40, []float64{90, 100}, 110, 120))

	assert.Equal(t, 40, f.Age)
	assert.Equal(t, 1, f.Sex)
	assert.InDelta(t, 105.0, f.CreatinineMean, 1e-9)
	assert.InDelta(t, 105.0, f.CreatinineMedian, 1e-9)
	assert.Equal(t, 120.0, f.CreatinineMax)
	assert.Equal(t, 90.0, f.CreatinineMin)
	assert.Equal(t, 120.0, f.LatestCreatinine)
}

func TestBuild_SexEncoding(t *testing.T) {
	assert.Equal(t, 0, Build(record("M", 30, nil, 100)).Sex)
	assert.Equal(t, 0, Build(record("m", 30, nil, 100)).Sex)
	assert.Equal(t, 1, Build(record("F", 30, nil, 100)).Sex)
}

func TestBuild_MissingDemographics(t *testing.T) {
	r := record("F", 0, nil, 100)
	r.Patient.Age = nil
	r.Patient.Sex = nil

	f := Build(r)
	assert.Equal(t, 0, f.Age)
	assert.Equal(t, 1, f.Sex)
}

func TestBuild_MedianOddCount(t *testing.T) {
	f := Build(record("F", 40, []float64{80, 90}, 120))
	assert.Equal(t, 90.0, f.CreatinineMedian)
}

func TestPredict_AbsoluteThreshold(t *testing.T) {
	c := NewDefaultClassifier()

	assert.Equal(t, 1, c.Predict(Build(record("F", 40, nil, 210))))
	assert.Equal(t, 0, c.Predict(Build(record("F", 40, nil, 100))))
}

func TestPredict_RatioThreshold(t *testing.T) {
	c := NewDefaultClassifier()

	// 基线约 100，最新 180：比值 (100+100+180)/3≈126.7，180/126.7≈1.42 < 1.5
	assert.Equal(t, 0, c.Predict(Build(record("F", 40, []float64{100, 100}, 180))))

	// 基线低、最新值翻倍以上
	f := Features{CreatinineMean: 80, LatestCreatinine: 130}
	assert.Equal(t, 1, c.Predict(f))
}

func TestPredict_NoBaseline(t *testing.T) {
	c := NewDefaultClassifier()

	// 无历史、单值低于绝对阈值：均值即最新值，比值恒为 1
	assert.Equal(t, 0, c.Predict(Build(record("F", 40, nil, 150))))
}
