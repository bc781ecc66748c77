package contract

import (
	"context"
	"io"
)

// ArtifactID: 输出工件标识（与 FileID 同一表示）。
type ArtifactID = FileID

// Writer: 将装配结果以流式方式持久化。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 按字节透传，不读取/修改业务内容；
//  3. 原子提交：读到 EOF 才落盘，读到错误则放弃，目标保持旧内容；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}
