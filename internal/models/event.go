package models

import "time"

// EventKind 临床事件类型
type EventKind string

const (
	EventAdmitted   EventKind = "admitted"    // PAS 入院（ADT^A01）
	EventDischarged EventKind = "discharged"  // PAS 出院（ADT^A03）
	EventTestResult EventKind = "test_result" // LIMS 血检结果（ORU^R01）
	EventUnknown    EventKind = "unknown"     // 已识别 MRN 但消息类型未知，确认后忽略
	EventError      EventKind = "error"       // 解析失败或缺少 MRN，回复 reject
)

// Event 解码后的临床事件（tagged union：每种类型只携带自己需要的字段）
type Event struct {
	Kind EventKind
	MRN  int // 患者病历号（Error 事件为 0）

	// EventAdmitted 专用
	Admission *AdmissionData

	// EventTestResult 专用
	TestResult *TestResultData

	// EventError 专用：解析失败原因
	Err error
}

// AdmissionData 入院消息的人口学数据（PID 段缺失时字段为 nil）
type AdmissionData struct {
	Name *string
	Age  *int
	Sex  *string
}

// TestResultData 血检消息数据：同一条消息内所有数值共用一个时间戳
type TestResultData struct {
	Values   []float64
	TestTime time.Time
}

// NewAdmittedEvent 创建入院事件
func NewAdmittedEvent(mrn int, data *AdmissionData) Event {
	return Event{Kind: EventAdmitted, MRN: mrn, Admission: data}
}

// NewDischargedEvent 创建出院事件
func NewDischargedEvent(mrn int) Event {
	return Event{Kind: EventDischarged, MRN: mrn}
}

// NewTestResultEvent 创建血检事件
func NewTestResultEvent(mrn int, data *TestResultData) Event {
	return Event{Kind: EventTestResult, MRN: mrn, TestResult: data}
}

// NewUnknownEvent 创建未知类型事件（确认接收但不处理）
func NewUnknownEvent(mrn int) Event {
	return Event{Kind: EventUnknown, MRN: mrn}
}

// NewErrorEvent 创建错误事件
func NewErrorEvent(err error) Event {
	return Event{Kind: EventError, Err: err}
}

// Accepted 是否应回复 accept 确认（只有 Error 事件回复 reject）
func (e Event) Accepted() bool {
	return e.Kind != EventError
}
