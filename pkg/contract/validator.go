package contract

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 校验库函数（纯函数，无 I/O）：
// - CountTerm/FindTerm: term 在 s 中以完整词出现（两侧不得紧邻字母/数字/下划线）
// - CountSubstring/FindSubstring: term 在 s 中作为子串出现（可位于词内）
// - CheckProtected: query 中出现的每个保护词，在 variant 中子串次数与完整词次数均不少于 query
// - CheckVariant:   非空、单行、与 query 不同，并满足 CheckProtected

// CountTerm 统计 term 在 s 中作为完整词出现的次数（大小写敏感）。
// "JFKK"、"jfk" 均不计为 "JFK"。
func CountTerm(s, term string) int { return len(FindTerm(s, term)) }

// FindTerm 返回 term 在 s 中每次完整词出现的字节区间 [start,end)。
func FindTerm(s, term string) [][2]int {
	if term == "" {
		return nil
	}
	var out [][2]int
	for i := 0; i <= len(s)-len(term); {
		j := strings.Index(s[i:], term)
		if j < 0 {
			break
		}
		at := i + j
		end := at + len(term)
		if IsWholeWord(s, at, end) {
			out = append(out, [2]int{at, end})
			i = end
			continue
		}
		_, w := utf8.DecodeRuneInString(s[at:])
		i = at + w
	}
	return out
}

// FindSubstring 返回 term 在 s 中每次（不重叠）子串出现的字节区间 [start,end)。
func FindSubstring(s, term string) [][2]int {
	if term == "" {
		return nil
	}
	var out [][2]int
	for i := 0; i <= len(s)-len(term); {
		j := strings.Index(s[i:], term)
		if j < 0 {
			break
		}
		at := i + j
		out = append(out, [2]int{at, at + len(term)})
		i = at + len(term)
	}
	return out
}

// CountSubstring 统计 term 在 s 中不重叠的子串出现次数（大小写敏感）。
func CountSubstring(s, term string) int { return len(FindSubstring(s, term)) }

// IsWholeWord 报告 s[start:end] 两侧是否都是词边界。
// 词字符为任意 Unicode 字母、数字与下划线；缩写派生使用同一定义。
func IsWholeWord(s string, start, end int) bool {
	return boundaryBefore(s, start) && boundaryAfter(s, end)
}

func boundaryBefore(s string, at int) bool {
	if at == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:at])
	return !isWordRune(r)
}

func boundaryAfter(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

// CheckProtected 校验保护词不变量；违例返回包装 ErrInvariantViolation 的错误。
func CheckProtected(query, variant string, protected []string) error {
	for _, p := range protected {
		want := CountSubstring(query, p)
		if want == 0 {
			continue
		}
		// 子串次数覆盖词内出现（chat ⊂ chatbot）；完整词次数拒绝 JFK → JFKK
		if CountSubstring(variant, p) < want || CountTerm(variant, p) < CountTerm(query, p) {
			return fmt.Errorf("%w: protected term %q altered", ErrInvariantViolation, p)
		}
	}
	return nil
}

// CheckVariant 校验单个变体相对 query 的全部逐条不变量（不含批内去重）。
func CheckVariant(query, variant string, protected []string) error {
	if strings.TrimSpace(variant) == "" {
		return fmt.Errorf("%w: empty variant", ErrInvariantViolation)
	}
	if strings.ContainsAny(variant, "\r\n") {
		return fmt.Errorf("%w: multi-line variant", ErrInvariantViolation)
	}
	if variant == query {
		return fmt.Errorf("%w: variant equals query", ErrInvariantViolation)
	}
	return CheckProtected(query, variant, protected)
}

// PresentTerms 返回 protected 中作为子串出现在 query 里的词（保持原顺序、去重）。
func PresentTerms(query string, protected []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(protected))
	for _, p := range protected {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if p != "" && strings.Contains(query, p) {
			out = append(out, p)
		}
	}
	return out
}
