// Package predictor 从完整患者记录构造特征向量并给出 AKI 二值判定。
// 判定器是特征向量到 0/1 的纯函数，不持有状态、不产生副作用。
package predictor

import (
	"sort"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

// Features AKI 判定特征向量（与参考模型的输入形态一致）
type Features struct {
	Age int
	Sex int // 0 = 男, 1 = 女/未知

	CreatinineMean   float64
	CreatinineMedian float64
	CreatinineMax    float64
	CreatinineMin    float64
	LatestCreatinine float64
}

// Build 从记录构造特征向量：历史数值与本次消息数值合并统计，
// 末位数值为最新值。人口学字段缺失取零值。
func Build(record models.ReadyRecord) Features {
	values := make([]float64, 0, len(record.Historical)+len(record.Latest.Values))
	for _, test := range record.Historical {
		values = append(values, test.Creatinine)
	}
	values = append(values, record.Latest.Values...)

	f := Features{
		CreatinineMean:   mean(values),
		CreatinineMedian: median(values),
		CreatinineMax:    max64(values),
		CreatinineMin:    min64(values),
		LatestCreatinine: record.LatestValue(),
	}

	if record.Patient.Age != nil {
		f.Age = *record.Patient.Age
	}
	if record.Patient.Sex != nil && (*record.Patient.Sex == "M" || *record.Patient.Sex == "m") {
		f.Sex = 0
	} else {
		f.Sex = 1
	}
	return f
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func max64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func min64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
