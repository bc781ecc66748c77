package termstore

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Sources 额外保护词的全部来源；均可为空。
type Sources struct {
	Terms   []string
	Lexicon string
	Store   *Store
}

// Collect 合并各来源并去重，顺序为：Terms → 词表 → Redis。
// 任一已配置来源读取失败即返回错误。
func Collect(ctx context.Context, src Sources) ([]string, error) {
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []string
	add := func(terms []string) {
		for _, t := range terms {
			t = strings.TrimSpace(t)
			if t == "" || !seen.Add(t) {
				continue
			}
			out = append(out, t)
		}
	}
	add(src.Terms)
	if src.Lexicon != "" {
		lex, err := LoadLexicon(src.Lexicon)
		if err != nil {
			return nil, err
		}
		add(lex)
	}
	if src.Store != nil {
		all, err := src.Store.All(ctx)
		if err != nil {
			return nil, err
		}
		add(all)
	}
	return out, nil
}
