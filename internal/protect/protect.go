// Package protect 决定哪些词在拼写变体中必须逐字节保留。
package protect

import (
	"regexp"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"typogen/pkg/contract"
)

// caps: 连续 >= 2 个大写字母。完整词判定交给 contract.IsWholeWord，
// 与保护词校验共用同一词边界（Unicode 字母/数字/下划线），即 \b[A-Z]{2,}\b。
var caps = regexp.MustCompile(`[A-Z]{2,}`)

// Abbreviations 按缩写规则从 query 派生保护词（如 JFK、US、NASA；按出现顺序去重）。
func Abbreviations(query string) []string {
	var out []string
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, loc := range caps.FindAllStringIndex(query, -1) {
		if !contract.IsWholeWord(query, loc[0], loc[1]) {
			continue
		}
		if w := query[loc[0]:loc[1]]; seen.Add(w) {
			out = append(out, w)
		}
	}
	return out
}

// IsAbbreviation 报告单个词是否命中缩写规则。
func IsAbbreviation(word string) bool {
	loc := caps.FindStringIndex(word)
	return loc != nil && loc[0] == 0 && loc[1] == len(word)
}

// Set: 运行级的额外保护词（CLI / 配置 / Redis / 词表）。
// 只读共享：构造后不再修改，可被多个 worker 并发读取。
type Set struct {
	terms mapset.Set[string]
}

// NewSet 合并多个来源；空白词被忽略，大小写敏感。
func NewSet(sources ...[]string) *Set {
	s := mapset.NewSet[string]()
	for _, src := range sources {
		for _, t := range src {
			if t = strings.TrimSpace(t); t != "" {
				s.Add(t)
			}
		}
	}
	return &Set{terms: s}
}

// Len 返回额外保护词数量。
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.terms.Cardinality()
}

// Contains 报告 term 是否为额外保护词。
func (s *Set) Contains(term string) bool {
	return s != nil && s.terms.Contains(term)
}

// For 计算某条 query 的最终保护词：派生缩写 ∪ 作为子串出现在 query 中的额外保护词。
// 结果排序稳定（派生词按出现顺序在前，额外词按字典序在后）。
func (s *Set) For(query string) []string {
	out := Abbreviations(query)
	if s.Len() == 0 {
		return out
	}
	seen := mapset.NewThreadUnsafeSet[string](out...)
	extra := make([]string, 0)
	for _, t := range s.terms.ToSlice() {
		if seen.Contains(t) || !strings.Contains(query, t) {
			continue
		}
		extra = append(extra, t)
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Describe 将保护词渲染为提示词文本；为空时返回 "None"。
func Describe(terms []string) string {
	if len(terms) == 0 {
		return "None"
	}
	return strings.Join(terms, ", ")
}
