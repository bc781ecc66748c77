package misspell

import (
	"strings"
	"unicode"

	"typogen/internal/protect"
	"typogen/pkg/contract"
)

// token: query 中的一段连续空白或非空白（词）。拼接全部 token 可无损还原 query。
type token struct {
	text  string
	space bool
	// 以下字段仅对词有效
	start  int // 在 query 中的字节偏移
	locked bool
	core   []rune // 去除首尾标点后的可编辑部分
	lead   string
	trail  string
}

func tokenize(query string) []token {
	var toks []token
	start := 0
	var inSpace bool
	for i, r := range query {
		sp := unicode.IsSpace(r)
		if i == 0 {
			inSpace = sp
			continue
		}
		if sp != inSpace {
			toks = append(toks, newToken(query[start:i], inSpace, start))
			start, inSpace = i, sp
		}
	}
	if start < len(query) {
		toks = append(toks, newToken(query[start:], inSpace, start))
	}
	return toks
}

func newToken(s string, space bool, start int) token {
	t := token{text: s, space: space, start: start}
	if space {
		return t
	}
	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	core := strings.TrimFunc(s, func(r rune) bool { return !isWord(r) })
	if core == "" {
		t.locked = true
		return t
	}
	i := strings.Index(s, core)
	t.lead, t.trail = s[:i], s[i+len(core):]
	t.core = []rune(core)
	return t
}

// lockProtected 标记与任一保护词子串区间重叠、或命中缩写规则的词为不可编辑。
func lockProtected(query string, toks []token, protected []string) {
	var spans [][2]int
	for _, p := range protected {
		spans = append(spans, contract.FindSubstring(query, p)...)
	}
	for i := range toks {
		t := &toks[i]
		if t.space || t.locked {
			continue
		}
		if protect.IsAbbreviation(string(t.core)) {
			t.locked = true
			continue
		}
		end := t.start + len(t.text)
		for _, sp := range spans {
			if sp[0] < end && t.start < sp[1] {
				t.locked = true
				break
			}
		}
	}
}

func (t token) editable() bool { return !t.space && !t.locked && len(t.core) > 0 }

// render 用新的 core 重建该词（保留首尾标点）。
func (t token) render(core []rune) string { return t.lead + string(core) + t.trail }

func join(toks []token, replace map[int]string) string {
	var b strings.Builder
	for i, t := range toks {
		if s, ok := replace[i]; ok {
			b.WriteString(s)
			continue
		}
		b.WriteString(t.text)
	}
	return b.String()
}
