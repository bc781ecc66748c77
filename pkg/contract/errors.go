package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（用于上层策略判定与日志分类）。
var (
	// ErrInvalidInput: 空 Query、n<1、非法配置等，生成前即拒绝。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPartialResult: 可生成的合法变体少于 n；非致命。
	ErrPartialResult = errors.New("partial result")
	// ErrResponseInvalid: 后端响应无法解析或不满足语法。
	ErrResponseInvalid = errors.New("response invalid")
	// ErrRateLimited: 上游限流（429）。
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendTimeout: 单次后端调用超过配置的超时。
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrBudgetExceeded: 预算或配额不足（如 token 预算）。
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrPathInvalid: 目标标识映射为无效/越界路径。
	ErrPathInvalid = errors.New("path invalid")
)

// PartialError 携带缺额信息；errors.Is(err, ErrPartialResult) 为真。
type PartialError struct {
	Want    int
	Got     int
	Dropped int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial result: %d/%d variants (dropped %d)", e.Got, e.Want, e.Dropped)
}

func (e *PartialError) Unwrap() error { return ErrPartialResult }

// Partial 由批构造 PartialError；满额时返回 nil。
func Partial(b VariantBatch) error {
	if !b.Short() {
		return nil
	}
	return &PartialError{Want: b.Want, Got: len(b.Variants), Dropped: b.Dropped}
}
