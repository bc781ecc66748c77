package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"typogen/internal/diag"
	"typogen/pkg/contract"
)

// One 处理单条 Query（gen 子命令）：与 Run 相同的生成/重试/过滤路径，不经 Reader/Writer。
// 仅在组件缺失或模式非法时返回错误；Query 本身的失败体现在 Result.Status/Err。
func One(ctx context.Context, comp Components, set Settings, logger *diag.Logger, rec contract.Record) (contract.Result, error) {
	mode, err := ParseMode(string(set.Mode))
	if err != nil {
		return contract.Result{}, err
	}
	set.Mode = mode
	if comp.Generator == nil {
		return contract.Result{}, fmt.Errorf("%w: missing generator", contract.ErrInvalidInput)
	}
	if mode.usesBackend() && (comp.PromptBuilder == nil || comp.LLM == nil || comp.Decoder == nil) {
		return contract.Result{}, fmt.Errorf("%w: mode %s requires prompt_builder/llm/decoder", contract.ErrInvalidInput, mode)
	}
	if set.NewID == nil {
		set.NewID = uuid.NewString
	}
	if logger == nil {
		logger = diag.Nop()
	}
	r := &runner{comp: comp, set: set, log: logger}
	res := r.query(ctx, contract.Request{ID: set.NewID(), Record: rec, N: set.N})
	r.set.Stats.Outcome(string(res.Status), len(res.Batch.Variants), res.Batch.Dropped)
	return res, nil
}
