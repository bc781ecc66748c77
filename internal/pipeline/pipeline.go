// Package pipeline 编排 Reader → Splitter → (Prompt → Gate → LLM → Decoder) / 规则生成 → Assembler → Writer。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"typogen/internal/diag"
	"typogen/internal/misspell"
	"typogen/internal/protect"
	"typogen/internal/rate"
	"typogen/pkg/contract"
)

// - 单点并发：仅此层管理并发与背压；原子组件均为同步、无内部并发。
// - 顺序门闩：同一 FileID 的结果按 Index 严格递增提交；乱序结果暂存，连续冲刷。
// - 单条失败不扩散：失败 Query 以显式结果值记录（零行），不取消其它任务。
// - 取消：停止提交后续结果，已提交的完整前缀照常落盘。

// Mode 生成模式。
type Mode string

const (
	// ModeRules 仅用确定性规则生成。
	ModeRules Mode = "rules"
	// ModeLLM 仅用后端生成，不足不补。
	ModeLLM Mode = "llm"
	// ModeHybrid 先用后端生成，再用规则补足；后端失败时整体回退规则。
	ModeHybrid Mode = "hybrid"
)

// ParseMode 解析模式名（空串视为 rules）。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRules:
		return ModeRules, nil
	case ModeLLM, ModeHybrid:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", contract.ErrInvalidInput, s)
}

// usesBackend 报告模式是否需要后端组件。
func (m Mode) usesBackend() bool { return m == ModeLLM || m == ModeHybrid }

// Components 聚合运行所需的原子组件。
// rules 模式下 PromptBuilder/LLM/Decoder 可为空。
type Components struct {
	Reader        contract.Reader
	Splitter      contract.Splitter
	PromptBuilder contract.PromptBuilder
	LLM           contract.LLMClient
	Decoder       contract.Decoder
	Assembler     contract.Assembler
	Writer        contract.Writer
	Generator     *misspell.Generator
	// Protect: 额外保护词（可为空；缩写总是自动派生）。
	Protect *protect.Set
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs      []string
	Mode        Mode
	N           int
	Concurrency int
	// MaxRetries: 后端调用/解码阶段最大重试次数（>=0）。0 表示不重试。
	MaxRetries int
	// Timeout: 单次后端调用超时；<=0 表示不限。
	Timeout time.Duration
	// 预算：单请求最大 token、估算参数（bytesPerToken）；MaxTokens<=0 关闭预算
	MaxTokens     int
	BytesPerToken int
	// 限流闸门（可选）：若非空，则在调用后端前调用 Gate.Wait
	Gate    rate.Gate
	GateKey rate.LimitKey
	// Report: 是否写出 JSONL 报告边车。
	Report bool
	// Backoff: 重试初始退避；<=0 使用默认值。
	Backoff time.Duration

	Terminal *diag.Terminal
	Stats    *diag.Stats
	// NewID 生成任务 ID；为空时使用 uuid。
	NewID func() string
}

// Run 执行完整流水线。
// 约束：
// - 所有组件均为同步实现；
// - 每条 Query 一个任务，受 Concurrency 与 Gate 控制；
// - 同一文件的结果按 Index 顺序提交给 Assembler/Writer，保证输出稳定。
// 返回：致命错误（读取/切分/装配/写出失败）或 ctx 取消；单条 Query 失败不返回错误。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) error {
	if err := sanity(comp, &set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}
	if logger == nil {
		logger = diag.Nop()
	}
	r := &runner{comp: comp, set: set, log: logger}
	rt := logger.Start("reader", "iterate")
	files := 0
	err := comp.Reader.Iterate(ctx, set.Inputs, func(fileID contract.FileID, rc io.ReadCloser) error {
		files++
		defer rc.Close()
		st := logger.StartWith("splitter", "split", string(fileID), "")
		recs, err := comp.Splitter.Split(ctx, fileID, rc)
		if err != nil {
			logger.ErrorWith("splitter", string(diag.Classify(err)), "split failed: "+err.Error(), st.Since(), string(fileID), "")
			return fmt.Errorf("splitter split %s: %w", fileID, err)
		}
		st.Finish("split", int64(len(recs)))
		return r.file(ctx, fileID, recs)
	})
	if err != nil {
		logger.ErrorWith("reader", string(diag.Classify(err)), "run aborted: "+err.Error(), rt.Since(), "", "")
		return err
	}
	rt.Finish("iterate", int64(files))
	return ctx.Err()
}

type runner struct {
	comp Components
	set  Settings
	log  *diag.Logger
}

type indexed struct {
	seq int
	res contract.Result
}

// file 并发处理单个文件的全部 Query，并按顺序提交。
func (r *runner) file(ctx context.Context, fileID contract.FileID, recs []contract.Record) error {
	fid := string(fileID)
	r.set.Terminal.FileStart(fid, len(recs))
	fileStart := time.Now()
	ok := false
	defer func() { r.set.Terminal.FileFinish(ok, time.Since(fileStart)) }()

	sink, err := r.openSinks(ctx, fileID)
	if err != nil {
		return err
	}

	// work 独立于提交：提交失败时取消剩余任务。
	work, stop := context.WithCancel(ctx)
	defer stop()
	results := make(chan indexed, r.set.Concurrency)
	g, gctx := errgroup.WithContext(work)
	g.SetLimit(r.set.Concurrency)
	go func() {
		for i, rec := range recs {
			if gctx.Err() != nil {
				break
			}
			req := contract.Request{ID: r.set.NewID(), Record: rec, N: r.set.N}
			g.Go(func() error {
				res := r.query(gctx, req)
				results <- indexed{seq: i, res: res}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	// 顺序门闩：buf 暂存乱序结果，next 为下一个应提交的序号。
	buf := make(map[int]contract.Result)
	next, fails := 0, 0
	var commitErr error
	for it := range results {
		if commitErr != nil {
			continue
		}
		buf[it.seq] = it.res
		for {
			res, ok := buf[next]
			if !ok {
				break
			}
			delete(buf, next)
			// 取消后产生的结果不提交，保证输出为有效前缀。
			if ctx.Err() != nil {
				commitErr = ctx.Err()
				stop()
				break
			}
			if err := r.commit(ctx, sink, res); err != nil {
				commitErr = err
				stop()
				break
			}
			if res.Status == contract.StatusFailed {
				fails++
			}
			next++
			r.set.Terminal.FileProgress(next, len(recs), fails)
		}
	}
	if err := sink.close(commitErr); err != nil && commitErr == nil {
		commitErr = err
	}
	if commitErr != nil {
		if errors.Is(commitErr, context.Canceled) || errors.Is(commitErr, context.DeadlineExceeded) {
			r.log.WarnWithKV("pipeline", string(diag.CodeCancel), "file cancelled; committed prefix", fid, "",
				map[string]string{"committed": fmt.Sprint(next), "total": fmt.Sprint(len(recs))})
		}
		return commitErr
	}
	ok = true
	return nil
}

// commit 提交单条结果：报告行 + 工件单元。
func (r *runner) commit(ctx context.Context, sink *sinks, res contract.Result) error {
	rows := len(res.Batch.Variants)
	if res.Status == contract.StatusFailed {
		rows = 0
	}
	r.set.Stats.Outcome(string(res.Status), rows, res.Batch.Dropped)
	at := r.log.StartWith("assembler", "assemble", string(res.Request.Record.FileID), res.Request.ID)
	unit, err := r.comp.Assembler.Assemble(ctx, res)
	if err != nil {
		r.log.ErrorWith("assembler", string(diag.Classify(err)), "assemble failed: "+err.Error(), at.Since(), string(res.Request.Record.FileID), res.Request.ID)
		return fmt.Errorf("assembler assemble: %w", err)
	}
	if err := sink.unit(unit); err != nil {
		return err
	}
	at.Finish("assemble", int64(rows))
	if sink.report != nil {
		if err := sink.report.Encode(newReportRow(res)); err != nil {
			return fmt.Errorf("report encode: %w", err)
		}
	}
	return nil
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil || c.Splitter == nil || c.Assembler == nil || c.Writer == nil || c.Generator == nil {
		return fmt.Errorf("%w: missing component", contract.ErrInvalidInput)
	}
	mode, err := ParseMode(string(s.Mode))
	if err != nil {
		return err
	}
	s.Mode = mode
	if mode.usesBackend() && (c.PromptBuilder == nil || c.LLM == nil || c.Decoder == nil) {
		return fmt.Errorf("%w: mode %s requires prompt_builder/llm/decoder", contract.ErrInvalidInput, mode)
	}
	if s.N < 1 {
		return fmt.Errorf("%w: n must be >= 1", contract.ErrInvalidInput)
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be > 0", contract.ErrInvalidInput)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0", contract.ErrInvalidInput)
	}
	if s.NewID == nil {
		s.NewID = uuid.NewString
	}
	return nil
}
