package misspell

import (
	"unicode"

	"typogen/pkg/contract"
)

// edit: 作用于单个词 core 的一次确定性变换。
type edit struct {
	kind contract.ErrorType
	word int // token 下标
	core []rune
}

// phoneticRule: from→to，可选的后继字母约束。
type phoneticRule struct {
	from   string
	to     string
	before string // 非空时要求匹配后紧跟其中任一字母
}

// phonetics: 顺序即优先级；多字母规则排在单字母规则之前。
var phonetics = []phoneticRule{
	{from: "tion", to: "shun"},
	{from: "ph", to: "f"},
	{from: "ch", to: "sh"},
	{from: "ck", to: "k"},
	{from: "qu", to: "kw"},
	{from: "ee", to: "ea"},
	{from: "ea", to: "ee"},
	{from: "oo", to: "u"},
	{from: "kn", to: "n"},
	{from: "wr", to: "r"},
	{from: "x", to: "ks"},
	{from: "c", to: "k", before: "aou"},
	{from: "c", to: "s", before: "eiy"},
	{from: "s", to: "z", before: "e"},
}

// minEditLen: 省略/换位要求的最小词长。
const minEditLen = 4

// phoneticEdits 按规则顺序、从左到右给出每个可用匹配的替换结果。
func phoneticEdits(core []rune) [][]rune {
	lower := make([]rune, len(core))
	for i, r := range core {
		lower[i] = unicode.ToLower(r)
	}
	var out [][]rune
	for _, rule := range phonetics {
		from := []rune(rule.from)
		for i := 0; i+len(from) <= len(lower); i++ {
			if !hasPrefixAt(lower, from, i) {
				continue
			}
			next := i + len(from)
			if rule.before != "" && (next >= len(lower) || !containsRune(rule.before, lower[next])) {
				continue
			}
			to := []rune(rule.to)
			if unicode.IsUpper(core[i]) && len(to) > 0 {
				to[0] = unicode.ToUpper(to[0])
			}
			w := make([]rune, 0, len(core)-len(from)+len(to))
			w = append(w, core[:i]...)
			w = append(w, to...)
			w = append(w, core[next:]...)
			out = append(out, w)
		}
	}
	return out
}

// omissionEdits 删除一个内部字符（首尾除外），从右往左；词长 < 4 时为空。
func omissionEdits(core []rune) [][]rune {
	if len(core) < minEditLen {
		return nil
	}
	var out [][]rune
	for i := len(core) - 2; i >= 1; i-- {
		if core[i] == core[i-1] {
			// 连续相同字母删哪个结果都一样，只取一次
			continue
		}
		w := make([]rune, 0, len(core)-1)
		w = append(w, core[:i]...)
		w = append(w, core[i+1:]...)
		out = append(out, w)
	}
	return out
}

// transpositionEdits 交换两个相邻的内部字符，从右往左；相同字符跳过。
func transpositionEdits(core []rune) [][]rune {
	if len(core) < minEditLen {
		return nil
	}
	var out [][]rune
	for i := len(core) - 3; i >= 1; i-- {
		if core[i] == core[i+1] {
			continue
		}
		w := append([]rune(nil), core...)
		w[i], w[i+1] = w[i+1], w[i]
		out = append(out, w)
	}
	return out
}

// repetitionEdits 将一个字母额外重复 1..3 次，从右往左，每个位置一个候选；
// 第 k 个候选重复 1+k%3 次。
func repetitionEdits(core []rune) [][]rune {
	var out [][]rune
	k := 0
	for i := len(core) - 1; i >= 0; i-- {
		if !unicode.IsLetter(core[i]) {
			continue
		}
		if i+1 < len(core) && core[i+1] == core[i] {
			// 与右侧同字母的位置重复结果会与右侧位置冲突
			continue
		}
		extra := 1 + k%3
		k++
		w := make([]rune, 0, len(core)+extra)
		w = append(w, core[:i+1]...)
		for j := 0; j < extra; j++ {
			w = append(w, core[i])
		}
		w = append(w, core[i+1:]...)
		out = append(out, w)
	}
	return out
}

// editsFor 汇总某类别在某个词上的全部候选。
func editsFor(kind contract.ErrorType, word int, core []rune) []edit {
	var ws [][]rune
	switch kind {
	case contract.Phonetic:
		ws = phoneticEdits(core)
	case contract.Omission:
		ws = omissionEdits(core)
	case contract.Transposition:
		ws = transpositionEdits(core)
	case contract.Repetition:
		ws = repetitionEdits(core)
	}
	out := make([]edit, 0, len(ws))
	for _, w := range ws {
		if string(w) == string(core) {
			continue
		}
		out = append(out, edit{kind: kind, word: word, core: w})
	}
	return out
}

func hasPrefixAt(s, p []rune, at int) bool {
	for j := range p {
		if s[at+j] != p[j] {
			return false
		}
	}
	return true
}

func containsRune(set string, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}
