package hl7

import (
	"fmt"
	"time"
)

// MSA-1 确认码
const (
	AckCodeAccept = "AA" // Application Accept
	AckCodeError  = "AE" // Application Error（reject，仅用于观测，上游不重发）
)

// BuildAck 构造确认消息载荷（两段：MSH + MSA），由 MLLP 层负责封帧
func BuildAck(accepted bool, at time.Time) []byte {
	code := AckCodeAccept
	if !accepted {
		code = AckCodeError
	}
	return []byte(fmt.Sprintf("MSH|^~\\&|||||%s||ACK|||2.5\rMSA|%s\r",
		at.Format(testTimeLayout), code))
}

// VerifyAck 校验确认消息：必须含 MSH 与 MSA 段，返回 MSA-1 是否为 AA。
// 结构不合法时返回错误（协议级问题，连接不可继续）。
func VerifyAck(payload []byte) (accepted bool, err error) {
	segments := splitSegments(payload)

	var msa []string
	hasMSH := false
	for _, fields := range segments {
		switch fields[0] {
		case "MSH":
			hasMSH = true
		case "MSA":
			msa = fields
		}
	}

	if !hasMSH {
		return false, fmt.Errorf("ack missing MSH segment")
	}
	if msa == nil {
		return false, fmt.Errorf("ack missing MSA segment")
	}
	if len(msa) < 2 {
		return false, fmt.Errorf("wrong number of fields in MSA segment")
	}
	return msa[1] == AckCodeAccept, nil
}
