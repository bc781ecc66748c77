package contract

import (
	"context"
	"io"
)

// Assembler: 将单条 Query 的 Result 渲染为一个可写出的单元（输出表的若干行）。
// 约束：
//  1. 单元要么完整（该 Query 的全部变体行），要么为空；不得产出半行；
//  2. 失败结果渲染为空单元（该 Query 贡献零行）；
//  3. Begin 仅在工件开头调用一次（如表头）；
//  4. 不引入跨工件状态。
type Assembler interface {
	Begin(ctx context.Context) (io.Reader, error)
	Assemble(ctx context.Context, res Result) (io.Reader, error)
}
