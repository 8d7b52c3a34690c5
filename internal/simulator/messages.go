// Package simulator 提供回放测试用的上游 MLLP 服务和下游呼叫接收端。
package simulator

import (
	"fmt"
	"os"

	"github.com/belfioreasia/swemls-aki-prediction/internal/mllp"
)

// LoadMessages 从 MLLP 格式文件读取完整的回放消息列表。
// 文件必须恰好由完整帧组成，尾部残片视为文件损坏。
func LoadMessages(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}

	messages, remainder, err := mllp.Split(data)
	if err != nil {
		return nil, fmt.Errorf("invalid replay file %s: %w", path, err)
	}
	if len(remainder) > 0 {
		return nil, fmt.Errorf("replay file %s has %d trailing bytes outside a frame", path, len(remainder))
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("replay file %s contains no messages", path)
	}

	return messages, nil
}
