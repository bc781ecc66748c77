// Package misspell 生成确定性的拼写变体并校验其不变量。
package misspell

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"typogen/internal/protect"
	"typogen/pkg/contract"
)

// Options 生成器构造参数（构造期注入，无全局状态）。
type Options struct {
	MaxEditRatio float64
}

// Generator: 基于规则的拼写变体生成器。纯计算、无共享可变状态，可被多个 worker 并发使用。
type Generator struct {
	filter Filter
}

// New 构造生成器；opts 可为 nil。
func New(opts *Options) *Generator {
	g := &Generator{}
	if opts != nil {
		g.filter.MaxEditRatio = opts.MaxEditRatio
	}
	return g
}

// Filter 返回生成器使用的过滤器（供后端输出复用同一套校验）。
func (g *Generator) Filter() Filter { return g.filter }

// Generate 为 query 生成至多 n 个变体。
// 返回：
//   - ErrInvalidInput：query 为空或 n < 1（批为零值）；
//   - *PartialError：合法变体不足 n（批仍返回）；
//   - nil：满额。
func (g *Generator) Generate(query string, protected []string, n int) (contract.VariantBatch, error) {
	return g.Fill(query, protected, n, nil)
}

// Fill 先按顺序接纳 seed（如后端输出）中的合法变体，再用规则候选补足到 n。
// seed 中未通过校验的条目计入 Dropped。
func (g *Generator) Fill(query string, protected []string, n int, seed []contract.Variant) (contract.VariantBatch, error) {
	b, err := g.Accept(query, protected, n, seed)
	if !errors.Is(err, contract.ErrPartialResult) {
		return b, err
	}
	g.topUp(&b)
	return b, contract.Partial(b)
}

// Accept 仅校验并接纳 seed，不做规则补足（llm 模式）。
func (g *Generator) Accept(query string, protected []string, n int, seed []contract.Variant) (contract.VariantBatch, error) {
	if strings.TrimSpace(query) == "" {
		return contract.VariantBatch{}, fmt.Errorf("%w: empty query", contract.ErrInvalidInput)
	}
	if n < 1 {
		return contract.VariantBatch{}, fmt.Errorf("%w: n must be >= 1, got %d", contract.ErrInvalidInput, n)
	}
	prot := contract.PresentTerms(query, append(protect.Abbreviations(query), protected...))
	b := contract.VariantBatch{Query: query, Protected: prot, Want: n}
	b.Variants, b.Dropped = g.filter.Apply(query, prot, n, seed)
	if b.Variants == nil {
		b.Variants = []contract.Variant{}
	}
	return b, contract.Partial(b)
}

// topUp 用规则候选补足 b：
//  1. 尚未覆盖的四种基础类别各取第一个可用候选；
//  2. 两个不同词上、不同类别的组合编辑；
//  3. 其余单一编辑，按类别轮转。
func (g *Generator) topUp(b *contract.VariantBatch) {
	toks := tokenize(b.Query)
	lockProtected(b.Query, toks, b.Protected)

	seen := mapset.NewThreadUnsafeSet[string](b.Query)
	covered := mapset.NewThreadUnsafeSet[contract.ErrorType]()
	for _, v := range b.Variants {
		seen.Add(v.Text)
		for _, t := range v.Types {
			covered.Add(t)
		}
	}
	full := func() bool { return len(b.Variants) >= b.Want }
	accept := func(text string, types ...contract.ErrorType) bool {
		if seen.Contains(text) || g.filter.Check(b.Query, text, b.Protected) != nil {
			return false
		}
		seen.Add(text)
		b.Variants = append(b.Variants, contract.Variant{Text: text, Types: types})
		for _, t := range types {
			covered.Add(t)
		}
		return true
	}

	// perWord[i][kind]: 第 i 个可编辑词上 kind 类别的候选（按优先级）。
	type wordEdits struct {
		word  int
		kinds map[contract.ErrorType][]edit
	}
	var words []wordEdits
	for i, t := range toks {
		if !t.editable() {
			continue
		}
		we := wordEdits{word: i, kinds: make(map[contract.ErrorType][]edit, len(contract.RequiredTypes))}
		for _, k := range contract.RequiredTypes {
			we.kinds[k] = editsFor(k, i, t.core)
		}
		words = append(words, we)
	}
	if len(words) == 0 {
		return
	}
	render := func(es ...edit) string {
		rep := make(map[int]string, len(es))
		for _, e := range es {
			rep[e.word] = toks[e.word].render(e.core)
		}
		return join(toks, rep)
	}

	// 按类别汇总（词序优先）的单一编辑队列。
	queues := make(map[contract.ErrorType][]edit, len(contract.RequiredTypes))
	for _, we := range words {
		for _, k := range contract.RequiredTypes {
			queues[k] = append(queues[k], we.kinds[k]...)
		}
	}

	for _, k := range contract.RequiredTypes {
		if full() {
			return
		}
		if covered.Contains(k) {
			continue
		}
		for len(queues[k]) > 0 {
			e := queues[k][0]
			queues[k] = queues[k][1:]
			if accept(render(e), k) {
				break
			}
		}
	}

	for i := 0; i < len(words) && !full(); i++ {
		for j := i + 1; j < len(words) && !full(); j++ {
			for _, ka := range contract.RequiredTypes {
				for _, kb := range contract.RequiredTypes {
					if full() {
						return
					}
					ea, eb := words[i].kinds[ka], words[j].kinds[kb]
					if ka == kb || len(ea) == 0 || len(eb) == 0 {
						continue
					}
					accept(render(ea[0], eb[0]), ka, kb)
				}
			}
		}
	}

	for !full() {
		progressed := false
		for _, k := range contract.RequiredTypes {
			if full() {
				return
			}
			for len(queues[k]) > 0 {
				e := queues[k][0]
				queues[k] = queues[k][1:]
				progressed = true
				if accept(render(e), k) {
					break
				}
			}
		}
		if !progressed {
			return
		}
	}
}

// Label 返回变体的展示类别：多个类别为 combined，未知为 unknown。
func Label(v contract.Variant) contract.ErrorType {
	switch len(v.Types) {
	case 0:
		return contract.Unknown
	case 1:
		return v.Types[0]
	default:
		return contract.Combined
	}
}
