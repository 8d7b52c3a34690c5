package models

import "time"

// 入院状态
const (
	StatusAdmitted   = "admitted"
	StatusDischarged = "discharged"
)

// 血检来源标记（blood_tests.test_source）
const (
	TestSourceHistorical = "historical"
	TestSourceNew        = "new"
)

// Patient 患者档案（patients 表一行）
type Patient struct {
	MRN             int
	Name            *string
	Age             *int
	Sex             *string
	AdmissionStatus string
}

// BloodTest 单条血检记录
type BloodTest struct {
	MRN        int
	TestTime   time.Time
	Creatinine float64
	Source     string // historical / new
}

// ReadyRecord 完成匹配、可送入预测的完整患者记录
type ReadyRecord struct {
	Patient    Patient
	Latest     TestResultData // 本次消息携带的全部数值，末位为最新
	Historical []BloodTest    // 此前已入库的记录，按时间从新到旧
}

// LatestValue 最新血检数值（Latest.Values 末位）
func (r *ReadyRecord) LatestValue() float64 {
	return r.Latest.Values[len(r.Latest.Values)-1]
}
