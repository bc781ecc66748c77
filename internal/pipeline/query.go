package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"typogen/internal/diag"
	"typogen/internal/misspell"
	"typogen/internal/prompt"
	"typogen/internal/rate"
	"typogen/pkg/contract"
)

const (
	defaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// query 处理单条 Query，总是返回显式结果值。
func (r *runner) query(ctx context.Context, req contract.Request) contract.Result {
	rec := req.Record
	fid := string(rec.FileID)
	req.Protected = r.comp.Protect.For(rec.Query)
	t := r.log.StartWith("generator", string(r.set.Mode), fid, req.ID)

	var b contract.VariantBatch
	var err error
	switch r.set.Mode {
	case ModeRules:
		b, err = r.comp.Generator.Generate(rec.Query, req.Protected, req.N)
	default:
		b, err = r.backend(ctx, req)
	}
	res := contract.Result{Request: req, Batch: b, Err: err}
	switch {
	case err == nil:
		res.Status = contract.StatusOK
	case errors.Is(err, contract.ErrPartialResult):
		res.Status = contract.StatusPartial
		r.log.WarnWithKV("generator", string(diag.CodePartial), err.Error(), fid, req.ID,
			map[string]string{"query": rec.Query})
	default:
		res.Status = contract.StatusFailed
		res.Batch.Variants = nil
		r.log.ErrorWithKV("generator", string(diag.Classify(err)), "query failed: "+err.Error(), t.Since(), fid, req.ID,
			map[string]string{"query": rec.Query})
		r.set.Terminal.QueryFailed(rec.Query, err.Error())
		return res
	}
	t.Finish("generate", int64(len(b.Variants)))
	return res
}

// backend 执行 llm/hybrid 模式：后端生成 → 过滤（→ 规则补足）。
func (r *runner) backend(ctx context.Context, req contract.Request) (contract.VariantBatch, error) {
	q, n := req.Record.Query, req.N
	// 输入非法时不消耗后端额度。
	if _, err := r.comp.Generator.Accept(q, req.Protected, n, nil); !isUsable(err) {
		return contract.VariantBatch{}, err
	}
	cands, err := r.generate(ctx, req)
	if err != nil {
		if r.set.Mode == ModeHybrid && ctx.Err() == nil {
			r.log.WarnWithKV("llm", string(diag.Classify(err)), "backend failed; rules fallback: "+err.Error(),
				string(req.Record.FileID), req.ID, nil)
			return r.comp.Generator.Generate(q, req.Protected, n)
		}
		return contract.VariantBatch{}, err
	}
	seed := make([]contract.Variant, 0, len(cands.Lines))
	for _, line := range cands.Lines {
		seed = append(seed, contract.Variant{Text: line, Types: misspell.Classify(q, line)})
	}
	var b contract.VariantBatch
	if r.set.Mode == ModeHybrid {
		b, err = r.comp.Generator.Fill(q, req.Protected, n, seed)
	} else {
		b, err = r.comp.Generator.Accept(q, req.Protected, n, seed)
	}
	if cands.Dropped > 0 {
		b.Dropped += cands.Dropped
		if pe := new(contract.PartialError); errors.As(err, &pe) {
			pe.Dropped = b.Dropped
		}
	}
	return b, err
}

// isUsable: nil 或 PartialResult 表示输入合法。
func isUsable(err error) bool { return err == nil || errors.Is(err, contract.ErrPartialResult) }

// generate 构造提示词并带重试地调用后端与解码器。
// 重试策略：
//   - 调用：网络/限流/超时重试；取消、预算、输入非法不重试；
//   - 解码：协议/响应无效重试；
//   - 总尝试次数 = 1 + MaxRetries，指数退避。
func (r *runner) generate(ctx context.Context, req contract.Request) (contract.Candidates, error) {
	fid := string(req.Record.FileID)
	p, err := r.comp.PromptBuilder.Build(ctx, req)
	if err != nil {
		return contract.Candidates{}, fmt.Errorf("prompt build: %w", err)
	}
	tokens := prompt.RequestTokens(p, req, prompt.MakeEstimator(r.set.BytesPerToken))
	if r.set.MaxTokens > 0 && tokens > r.set.MaxTokens {
		return contract.Candidates{}, fmt.Errorf("%w: request needs ~%d tokens > max_tokens %d", contract.ErrBudgetExceeded, tokens, r.set.MaxTokens)
	}

	attempt := 0
	op := func() (contract.Candidates, error) {
		attempt++
		if r.set.Gate != nil {
			if err := r.set.Gate.Wait(ctx, rate.Ask{Key: r.set.GateKey, Requests: 1, Tokens: tokens}); err != nil {
				return contract.Candidates{}, backoff.Permanent(fmt.Errorf("gate: %w", err))
			}
		}
		raw, err := r.invoke(ctx, req, p, attempt)
		if err != nil {
			if shouldRetryInvoke(err) {
				return contract.Candidates{}, err
			}
			return contract.Candidates{}, backoff.Permanent(err)
		}
		dt := r.log.StartWith("decoder", "decode", fid, req.ID)
		cands, err := r.comp.Decoder.Decode(ctx, req, raw)
		if err != nil {
			r.log.ErrorWithKV("decoder", string(diag.Classify(err)), "decode failed: "+err.Error(), dt.Since(), fid, req.ID,
				map[string]string{"attempt": fmt.Sprint(attempt), "raw": clip(raw.Text, 512)})
			if shouldRetryDecode(err) {
				return contract.Candidates{}, err
			}
			return contract.Candidates{}, backoff.Permanent(err)
		}
		dt.Finish("decode", int64(len(cands.Lines)))
		return cands, nil
	}
	notify := func(err error, wait time.Duration) {
		r.set.Stats.Retry()
		r.log.WarnWithKV("llm", string(diag.Classify(err)), "retrying: "+err.Error(), fid, req.ID,
			map[string]string{"attempt": fmt.Sprint(attempt), "wait_ms": fmt.Sprint(wait.Milliseconds())})
	}
	return backoff.RetryNotifyWithData(op, r.policy(ctx), notify)
}

// invoke 单次后端调用；单次超时包装为 ErrBackendTimeout（可重试）。
func (r *runner) invoke(ctx context.Context, req contract.Request, p contract.Prompt, attempt int) (contract.Raw, error) {
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if r.set.Timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, r.set.Timeout)
	}
	defer cancel()
	lt := r.log.StartWithKV("llm", "invoke", string(req.Record.FileID), req.ID, map[string]string{"attempt": fmt.Sprint(attempt)})
	raw, err := r.comp.LLM.Invoke(cctx, req, p)
	if err != nil {
		if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", contract.ErrBackendTimeout, r.set.Timeout, err)
		}
		r.log.ErrorWith("llm", string(diag.Classify(err)), "invoke failed: "+err.Error(), lt.Since(), string(req.Record.FileID), req.ID)
		return contract.Raw{}, err
	}
	lt.Finish("invoke", int64(len(raw.Text)))
	return raw, nil
}

// policy 构造本次请求的退避策略。
func (r *runner) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.set.Backoff
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = defaultBackoff
	}
	eb.MaxInterval = maxBackoff
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.set.MaxRetries)), ctx)
}

// shouldRetryInvoke: 网络抖动、上游限流、单次超时可重试；取消/预算/其它不重试。
func shouldRetryInvoke(err error) bool {
	if err == nil {
		return false
	}
	switch diag.Classify(err) {
	case diag.CodeNetwork, diag.CodeTimeout:
		return true
	case diag.CodeBudget:
		return errors.Is(err, contract.ErrRateLimited)
	default:
		return false
	}
}

// shouldRetryDecode: 针对“模型幻觉/响应无效”做有限次重试。
func shouldRetryDecode(err error) bool {
	return err != nil && diag.Classify(err) == diag.CodeProtocol
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
