package contract

import (
	"context"
	"io"
)

// Splitter: 将单个输入流解析为 []Record。
// 约束：Index 自 0 连续；空 Query 行保留（由生成阶段以 ErrInvalidInput 拒绝并记入报告）。
type Splitter interface {
	Split(ctx context.Context, fileID FileID, r io.Reader) ([]Record, error)
}
