package misspell

import (
	"strings"

	"typogen/pkg/contract"
)

// Classify 推断后端变体相对 query 施加的错误类别（按词序，去重）。
// 词数不同或无法归类时返回 [unknown]。
func Classify(query, variant string) []contract.ErrorType {
	qw, vw := strings.Fields(query), strings.Fields(variant)
	if len(qw) != len(vw) {
		return []contract.ErrorType{contract.Unknown}
	}
	var out []contract.ErrorType
	for i := range qw {
		if qw[i] == vw[i] {
			continue
		}
		k := classifyWord([]rune(qw[i]), []rune(vw[i]))
		if k == contract.Unknown {
			return []contract.ErrorType{contract.Unknown}
		}
		dup := false
		for _, t := range out {
			if t == k {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return []contract.ErrorType{contract.Unknown}
	}
	return out
}

func classifyWord(q, v []rune) contract.ErrorType {
	switch {
	case isOmission(q, v):
		return contract.Omission
	case isTransposition(q, v):
		return contract.Transposition
	case len(v) > len(q) && string(squeeze(v)) == string(squeeze(q)):
		return contract.Repetition
	}
	for _, e := range phoneticEdits(q) {
		if string(e) == string(v) {
			return contract.Phonetic
		}
	}
	return contract.Unknown
}

func isOmission(q, v []rune) bool {
	if len(v) != len(q)-1 {
		return false
	}
	i := 0
	for i < len(v) && q[i] == v[i] {
		i++
	}
	return string(q[i+1:]) == string(v[i:])
}

func isTransposition(q, v []rune) bool {
	if len(q) != len(v) {
		return false
	}
	var diff []int
	for i := range q {
		if q[i] != v[i] {
			diff = append(diff, i)
		}
	}
	return len(diff) == 2 && diff[1] == diff[0]+1 &&
		q[diff[0]] == v[diff[1]] && q[diff[1]] == v[diff[0]]
}

// squeeze 折叠连续重复字符。
func squeeze(s []rune) []rune {
	out := make([]rune, 0, len(s))
	for i, r := range s {
		if i > 0 && r == s[i-1] {
			continue
		}
		out = append(out, r)
	}
	return out
}
