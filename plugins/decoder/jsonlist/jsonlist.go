// Package jsonlist 将后端输出按 JSON 字符串数组严格解码。
package jsonlist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"typogen/pkg/contract"
)

// Options: 当前无配置；保留以便严格解码拒绝未知字段。
type Options struct{}

type decoder struct{}

// New 创建解码器。
func New(*Options) contract.Decoder { return decoder{} }

// Decode 期望 Raw.Text 为 JSON 数组（可被 ```json 围栏包裹），或含
// "variants"/"misspelled_queries" 数组字段的对象。
// 非字符串或空白元素丢弃并计数；整体无法解析或一条都未通过时返回 ErrResponseInvalid。
func (decoder) Decode(ctx context.Context, req contract.Request, raw contract.Raw) (contract.Candidates, error) {
	if err := ctx.Err(); err != nil {
		return contract.Candidates{}, err
	}
	body := unfence(strings.TrimSpace(raw.Text))
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		var obj map[string][]json.RawMessage
		if oerr := json.Unmarshal([]byte(body), &obj); oerr != nil {
			return contract.Candidates{}, fmt.Errorf("decode json list: %w", contract.ErrResponseInvalid)
		}
		var ok bool
		if items, ok = obj["variants"]; !ok {
			if items, ok = obj["misspelled_queries"]; !ok {
				return contract.Candidates{}, fmt.Errorf("decode json list: no variants field: %w", contract.ErrResponseInvalid)
			}
		}
	}
	var out contract.Candidates
	for _, it := range items {
		var s string
		if err := json.Unmarshal(it, &s); err != nil || strings.TrimSpace(s) == "" || strings.ContainsAny(s, "\r\n") {
			out.Dropped++
			continue
		}
		out.Lines = append(out.Lines, strings.TrimSpace(s))
	}
	if len(out.Lines) == 0 {
		return out, fmt.Errorf("decode json list: empty: %w", contract.ErrResponseInvalid)
	}
	return out, nil
}

// unfence 剥离 Markdown 代码围栏。
func unfence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

var _ contract.Decoder = decoder{}
