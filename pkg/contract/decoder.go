package contract

import "context"

// Candidates: 解码器从后端原始输出中解析出的候选行。
// Dropped 为不满足语法而被丢弃的行数（计入 PartialResult）。
type Candidates struct {
	Lines   []string
	Dropped int
}

// Decoder: 将 Raw 解码为候选行。
// 约束：
//   - 语法严格、失败关闭：无法解析的行丢弃并计数，绝不当作合法变体；
//   - 一行都解析不出时返回 ErrResponseInvalid（供编排层重试）；
//   - 不检查保护词/去重，这由过滤器负责。
type Decoder interface {
	Decode(ctx context.Context, req Request, raw Raw) (Candidates, error)
}
