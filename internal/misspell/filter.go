package misspell

import (
	"fmt"
	"math"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hbollon/go-edlib"

	"typogen/pkg/contract"
)

// DefaultMaxEditRatio: 变体与原 query 的 OSA 编辑距离占 query 长度的上限。
const DefaultMaxEditRatio = 0.5

// minMaxDistance: 规则候选距离上限的下限，覆盖规则生成器单条变体的最大编辑量（组合变体）。
const minMaxDistance = 6

// minSeedDistance: 后端候选距离上限的下限。
const minSeedDistance = 2

var errTooFar = fmt.Errorf("%w: variant too far from query", contract.ErrInvariantViolation)

// Filter 校验并过滤候选变体。
// 约束：
//  1. 逐条检查 contract.CheckVariant（非空/单行/≠query/保护词）；
//  2. 批内去重（含与已接受变体重复）；
//  3. 编辑距离超限的候选视为改写而非拼写错误，丢弃：
//     规则候选上限 max(MaxEditRatio*len, 6)；后端候选（Apply）上限 max(ceil(MaxEditRatio*len), 2)，且不超过规则上限；
//  4. 至多保留 n 条；对合法批重复过滤不会拒绝任何成员。
type Filter struct {
	// MaxEditRatio <= 0 时取 DefaultMaxEditRatio。
	MaxEditRatio float64
}

func (f Filter) ratio() float64 {
	if f.MaxEditRatio <= 0 {
		return DefaultMaxEditRatio
	}
	return f.MaxEditRatio
}

func (f Filter) maxDistance(query string) int {
	return max(int(f.ratio()*float64(len([]rune(query)))), minMaxDistance)
}

// seedDistance: 后端候选的距离上限，随 query 长度增长；短 query 上不放行整句改写。
func (f Filter) seedDistance(query string) int {
	d := max(int(math.Ceil(f.ratio()*float64(len([]rune(query))))), minSeedDistance)
	return min(d, f.maxDistance(query))
}

// Check 校验单条规则候选（不含去重）。
func (f Filter) Check(query, variant string, protected []string) error {
	return f.check(query, variant, protected, f.maxDistance(query))
}

func (f Filter) check(query, variant string, protected []string, limit int) error {
	if err := contract.CheckVariant(query, variant, protected); err != nil {
		return err
	}
	if d := edlib.OSADamerauLevenshteinDistance(query, variant); d > limit {
		return errTooFar
	}
	return nil
}

// Apply 按顺序过滤后端候选 cands，返回保留的变体与被丢弃的数量（超出 n 的合法候选不计为丢弃）。
func (f Filter) Apply(query string, protected []string, n int, cands []contract.Variant) ([]contract.Variant, int) {
	return f.apply(query, protected, n, cands, f.seedDistance(query))
}

func (f Filter) apply(query string, protected []string, n int, cands []contract.Variant, limit int) ([]contract.Variant, int) {
	seen := mapset.NewThreadUnsafeSet[string]()
	kept := make([]contract.Variant, 0, min(n, len(cands)))
	dropped := 0
	for _, c := range cands {
		if len(kept) >= n {
			break
		}
		text := strings.TrimSpace(c.Text)
		if f.check(query, text, protected, limit) != nil || !seen.Add(text) {
			dropped++
			continue
		}
		c.Text = text
		kept = append(kept, c)
	}
	return kept, dropped
}

// Revalidate 对一个已组装的批（后端候选 + 规则补足）重新执行过滤，返回未通过的成员数。
// 使用规则上限：它不小于后端上限，两类成员都不会被误拒。
func (f Filter) Revalidate(b contract.VariantBatch) int {
	kept, _ := f.apply(b.Query, b.Protected, len(b.Variants), b.Variants, f.maxDistance(b.Query))
	return len(b.Variants) - len(kept)
}
