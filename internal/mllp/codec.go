// Package mllp 实现 MLLP（Minimal Lower Layer Protocol）帧编解码。
// 一帧 = 0x0B 起始字节 + 载荷 + 0x1C 结束字节 + 0x0D 终止字节。
// 编解码只负责分帧，载荷内部结构（HL7 段/字段）由上层解析。
package mllp

import "fmt"

// MLLP 帧字节
const (
	StartOfBlock   byte = 0x0b
	EndOfBlock     byte = 0x1c
	CarriageReturn byte = 0x0d
)

// FramingError 帧终止字节不匹配：流位置已不可信，整个缓冲区作废，
// 调用方应断开重连而不是继续解析
type FramingError struct {
	Want byte
	Got  byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("bad MLLP encoding: want %#x, found %#x", e.Want, e.Got)
}

// Split 从累积缓冲区中提取所有完整帧的载荷，返回未消费的剩余字节
// （半条消息，需拼接到下一次读取之前）。
// 起始字节之前的杂散字节宽松跳过（重新同步）；结束字节之后必须紧跟终止
// 字节，否则返回 FramingError 作废整个缓冲区。
func Split(buffer []byte) (messages [][]byte, remainder []byte, err error) {
	consumed := 0
	start := -1 // 当前帧载荷起始下标（-1 表示尚未见到起始字节）
	expectCR := false

	for i := 0; i < len(buffer); i++ {
		b := buffer[i]
		switch {
		case expectCR:
			if b != CarriageReturn {
				return nil, nil, &FramingError{Want: CarriageReturn, Got: b}
			}
			payload := make([]byte, i-1-start)
			copy(payload, buffer[start:i-1])
			messages = append(messages, payload)
			consumed = i + 1
			start = -1
			expectCR = false
		case start < 0:
			if b == StartOfBlock {
				start = i + 1
			}
			// 起始字节前的内容跳过，等待重新同步
		case b == EndOfBlock:
			expectCR = true
		}
	}

	return messages, buffer[consumed:], nil
}

// Frame 把载荷包装为一条 MLLP 帧（Split 的逆变换），用于发送确认
func Frame(payload []byte) []byte {
	framed := make([]byte, 0, len(payload)+3)
	framed = append(framed, StartOfBlock)
	framed = append(framed, payload...)
	framed = append(framed, EndOfBlock, CarriageReturn)
	return framed
}
