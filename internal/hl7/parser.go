// Package hl7 从 MLLP 载荷中提取本系统需要的临床事件。
// 只解析消息类型（MSH-9）、病历号（PID-3）和事件相关字段，
// 不做通用 HL7 合规校验；无法识别的消息类型确认后忽略。
package hl7

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

// HL7 分隔符
const (
	segmentSeparator = "\r"
	fieldSeparator   = "|"
)

// 字段位置（按 | 切分后的下标；MSH 段首字段即分隔符本身，故 MSH-9 在下标 8）
const (
	mshTypeIndex   = 8 // MSH-9 消息类型
	pidMRNIndex    = 3 // PID-3 病历号
	pidNameIndex   = 5 // PID-5 姓名
	pidDOBIndex    = 7 // PID-7 出生日期（YYYYMMDD）
	pidSexIndex    = 8 // PID-8 性别
	obrTimeIndex   = 7 // OBR-7 检验时间（YYYYMMDDHHMMSS）
	obxValueIndex  = 5 // OBX-5 检验数值
)

const (
	typeAdmit     = "ADT^A01"
	typeDischarge = "ADT^A03"
	typeLabResult = "ORU^R01"

	dobLayout      = "20060102"
	testTimeLayout = "20060102150405"
)

// Parser 消息提取器：一条 MLLP 载荷 → 一个类型化事件
type Parser struct {
	logger *zap.Logger
	now    func() time.Time // 可注入时钟（年龄计算、缺省检验时间）
}

// NewParser 创建消息提取器
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{
		logger: logger,
		now:    time.Now,
	}
}

// Parse 解析一条帧载荷。解析失败或缺少病历号时返回 Error 事件，从不 panic。
func (p *Parser) Parse(payload []byte) models.Event {
	segments := splitSegments(payload)
	if len(segments) == 0 {
		return models.NewErrorEvent(fmt.Errorf("empty message"))
	}

	messageType := extractMessageType(segments)

	mrn, err := extractMRN(segments)
	if err != nil {
		p.logger.Error("No patient MRN found in HL7 message",
			zap.String("message_type", messageType),
			zap.Error(err),
		)
		return models.NewErrorEvent(err)
	}

	switch messageType {
	case typeAdmit:
		return models.NewAdmittedEvent(mrn, p.extractAdmission(segments))
	case typeDischarge:
		return models.NewDischargedEvent(mrn)
	case typeLabResult:
		data, err := p.extractTestResult(segments)
		if err != nil {
			p.logger.Error("Failed to parse lab result message",
				zap.Int("mrn", mrn),
				zap.Error(err),
			)
			return models.NewErrorEvent(err)
		}
		return models.NewTestResultEvent(mrn, data)
	default:
		p.logger.Warn("Unknown message type, ignoring",
			zap.String("message_type", messageType),
			zap.Int("mrn", mrn),
		)
		return models.NewUnknownEvent(mrn)
	}
}

// extractAdmission 提取入院人口学数据（字段缺失为 nil，不算失败）
func (p *Parser) extractAdmission(segments [][]string) *models.AdmissionData {
	data := &models.AdmissionData{}
	for _, fields := range segments {
		if fields[0] != "PID" {
			continue
		}
		if name := fieldAt(fields, pidNameIndex); name != "" {
			data.Name = &name
		}
		if dob := fieldAt(fields, pidDOBIndex); dob != "" {
			if born, err := time.Parse(dobLayout, dob); err == nil {
				age := p.ageAt(born)
				data.Age = &age
			}
		}
		if sex := fieldAt(fields, pidSexIndex); sex != "" {
			data.Sex = &sex
		}
	}
	return data
}

// extractTestResult 提取血检数值与时间。任一数值非浮点则整条消息失败。
func (p *Parser) extractTestResult(segments [][]string) (*models.TestResultData, error) {
	data := &models.TestResultData{TestTime: p.now()}
	for _, fields := range segments {
		switch fields[0] {
		case "OBR":
			if raw := fieldAt(fields, obrTimeIndex); raw != "" {
				testTime, err := time.Parse(testTimeLayout, raw)
				if err != nil {
					return nil, fmt.Errorf("bad test timestamp %q: %w", raw, err)
				}
				data.TestTime = testTime
			}
		case "OBX":
			raw := fieldAt(fields, obxValueIndex)
			if raw == "" {
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("non-numeric test value %q: %w", raw, err)
			}
			data.Values = append(data.Values, value)
		}
	}
	return data, nil
}

// ageAt 按当前日期计算年龄：年差减一当且仅当今年生日未到
func (p *Parser) ageAt(born time.Time) int {
	today := p.now()
	age := today.Year() - born.Year()
	if today.Month() < born.Month() || (today.Month() == born.Month() && today.Day() < born.Day()) {
		age--
	}
	return age
}

// extractMessageType 提取 MSH-9 消息类型
func extractMessageType(segments [][]string) string {
	for _, fields := range segments {
		if fields[0] == "MSH" {
			return fieldAt(fields, mshTypeIndex)
		}
	}
	return ""
}

// extractMRN 提取 PID-3 病历号
func extractMRN(segments [][]string) (int, error) {
	for _, fields := range segments {
		if fields[0] != "PID" {
			continue
		}
		raw := fieldAt(fields, pidMRNIndex)
		if raw == "" {
			return 0, fmt.Errorf("missing MRN in PID segment")
		}
		mrn, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("bad MRN %q: %w", raw, err)
		}
		// 零不是有效病历号，按缺失处理
		if mrn <= 0 {
			return 0, fmt.Errorf("bad MRN %q: not a valid patient identifier", raw)
		}
		return mrn, nil
	}
	return 0, fmt.Errorf("no PID segment in message")
}

// splitSegments 按段/字段分隔符切分载荷，丢弃空段
func splitSegments(payload []byte) [][]string {
	var segments [][]string
	for _, line := range strings.Split(string(payload), segmentSeparator) {
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		segments = append(segments, strings.Split(line, fieldSeparator))
	}
	return segments
}

// fieldAt 取下标处字段，越界返回空串
func fieldAt(fields []string, index int) string {
	if index >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[index])
}
