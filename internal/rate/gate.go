// Package rate 为后端调用提供按 provider 凭据分组的 RPM/TPM 闸门。
package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"

	"typogen/pkg/contract"
)

// LimitKey: 限流分组键（client:sha256(api key)，或退化为 provider 名称）。
type LimitKey string

// Limits: 每分组的限额配置。0 表示该维度不启用。
type Limits struct {
	RPM             int // requests per minute
	TPM             int // tokens per minute
	MaxTokensPerReq int // 单次请求 token 上限，0 表示不限制
}

// Ask: 一次放行申请。
type Ask struct {
	Key      LimitKey
	Requests int // 必须 >=1
	Tokens   int // 预计 token（>=0）
}

// Gate: 限流闸门（并发安全）。
type Gate interface {
	// Wait 阻塞直到额度可用或 ctx 取消；违反单请求上限时快速失败。
	Wait(ctx context.Context, a Ask) error
	// Try 非阻塞尝试；不足时返回 false 且不消耗额度。
	Try(a Ask) bool
}

// NewGate 从静态配置构造闸门；clk 为空则使用 time.Now（仅 Try 使用）。
func NewGate(m map[LimitKey]Limits, clk func() time.Time) Gate {
	if clk == nil {
		clk = time.Now
	}
	g := &gate{clk: clk, m: make(map[LimitKey]*entry, len(m))}
	for k, lim := range m {
		g.m[k] = newEntry(lim)
	}
	return g
}

type gate struct {
	clk func() time.Time
	mu  sync.Mutex
	m   map[LimitKey]*entry
}

// entry: 每分组一对令牌桶；nil 表示该维度关闭。
type entry struct {
	lim Limits
	req *xrate.Limiter
	tok *xrate.Limiter
}

func newEntry(lim Limits) *entry {
	e := &entry{lim: lim}
	if lim.RPM > 0 {
		e.req = perMinute(lim.RPM)
	}
	if lim.TPM > 0 {
		e.tok = perMinute(lim.TPM)
	}
	return e
}

// perMinute: 容量为 n、每分钟补满的令牌桶（初始满）。
func perMinute(n int) *xrate.Limiter {
	return xrate.NewLimiter(xrate.Limit(float64(n)/60.0), n)
}

func (g *gate) get(key LimitKey) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.m[key]
	if e == nil {
		// 未配置的 key 视为不限额
		e = newEntry(Limits{})
		g.m[key] = e
	}
	return e
}

func (e *entry) check(a Ask) error {
	if a.Requests <= 0 || a.Tokens < 0 {
		return fmt.Errorf("%w: bad ask %+v", contract.ErrInvalidInput, a)
	}
	if e.lim.MaxTokensPerReq > 0 && a.Tokens > e.lim.MaxTokensPerReq {
		return fmt.Errorf("%w: %d tokens exceeds max_tokens_per_req %d", contract.ErrBudgetExceeded, a.Tokens, e.lim.MaxTokensPerReq)
	}
	if e.req != nil && a.Requests > e.req.Burst() {
		return fmt.Errorf("%w: %d requests exceeds rpm %d", contract.ErrBudgetExceeded, a.Requests, e.lim.RPM)
	}
	if e.tok != nil && a.Tokens > e.tok.Burst() {
		return fmt.Errorf("%w: %d tokens exceeds tpm %d", contract.ErrBudgetExceeded, a.Tokens, e.lim.TPM)
	}
	return nil
}

func (g *gate) Try(a Ask) bool {
	e := g.get(a.Key)
	if e.check(a) != nil {
		return false
	}
	now := g.clk()
	var rr, rt *xrate.Reservation
	if e.req != nil {
		rr = e.req.ReserveN(now, a.Requests)
		if !rr.OK() || rr.DelayFrom(now) > 0 {
			rr.CancelAt(now)
			return false
		}
	}
	if e.tok != nil && a.Tokens > 0 {
		rt = e.tok.ReserveN(now, a.Tokens)
		if !rt.OK() || rt.DelayFrom(now) > 0 {
			rt.CancelAt(now)
			if rr != nil {
				rr.CancelAt(now)
			}
			return false
		}
	}
	return true
}

func (g *gate) Wait(ctx context.Context, a Ask) error {
	e := g.get(a.Key)
	if err := e.check(a); err != nil {
		return err
	}
	if e.req != nil {
		if err := e.req.WaitN(ctx, a.Requests); err != nil {
			return waitErr(ctx, err)
		}
	}
	if e.tok != nil && a.Tokens > 0 {
		if err := e.tok.WaitN(ctx, a.Tokens); err != nil {
			return waitErr(ctx, err)
		}
	}
	return nil
}

// waitErr: 将 limiter 的等待失败统一为 ctx 错误（可被 diag.Classify 识别为取消）。
func waitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// WaitN 在等待会超过 ctx 截止时间时提前返回
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("rate: %w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// Snapshot 返回当前可用请求/令牌的向下取整估值（仅诊断）；维度关闭时为 0。
func (g *gate) Snapshot(key LimitKey) (rpmAvail, tpmAvail int) {
	e := g.get(key)
	now := g.clk()
	if e.req != nil {
		rpmAvail = int(e.req.TokensAt(now))
	}
	if e.tok != nil {
		tpmAvail = int(e.tok.TokensAt(now))
	}
	return
}

var _ Gate = (*gate)(nil)
