package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"typogen/internal/misspell"
	"typogen/pkg/contract"
)

// Options: 最小调试配置（可选）。
type Options struct {
	// ResponseMode: 可选的响应模式（用于集成测试与无网络联调）。
	//  - "" / "rules": 用规则生成器产出编号列表（"1. kat"），与 lines 解码器即插即用；
	//  - "json": 同上，但产出 JSON 字符串数组，与 jsonlist 解码器即插即用；
	//  - "echo": 回显 Prompt 摘要；
	//  - "fixed": 原样返回 Lines（逐行拼接）。
	ResponseMode string   `json:"response_mode,omitempty"`
	Lines        []string `json:"lines,omitempty"`
	Prefix       string   `json:"prefix,omitempty"` // echo 模式前缀，默认 "MOCK"
}

type Client struct {
	prefix string
	mode   string
	lines  []string
	gen    *misspell.Generator
}

func New(raw json.RawMessage) (contract.LLMClient, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("mock options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	if o.Prefix == "" {
		o.Prefix = "MOCK"
	}
	mode := strings.TrimSpace(o.ResponseMode)
	if mode == "" {
		mode = "rules"
	}
	switch mode {
	case "rules", "json", "echo", "fixed":
	default:
		return nil, fmt.Errorf("mock: %w: unknown response_mode %q", contract.ErrInvalidInput, mode)
	}
	return &Client{prefix: o.Prefix, mode: mode, lines: o.Lines, gen: misspell.New(nil)}, nil
}

func (c *Client) Invoke(ctx context.Context, req contract.Request, p contract.Prompt) (contract.Raw, error) {
	if err := ctx.Err(); err != nil {
		return contract.Raw{}, err
	}
	switch c.mode {
	case "rules", "json":
		b, err := c.gen.Generate(req.Record.Query, req.Protected, req.N)
		if err != nil && !errors.Is(err, contract.ErrPartialResult) {
			return contract.Raw{}, err
		}
		texts := make([]string, 0, len(b.Variants))
		for _, v := range b.Variants {
			texts = append(texts, v.Text)
		}
		if c.mode == "json" {
			bts, _ := json.Marshal(texts)
			return contract.Raw{Text: string(bts)}, nil
		}
		var sb strings.Builder
		for i, t := range texts {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
		}
		return contract.Raw{Text: sb.String()}, nil
	case "fixed":
		return contract.Raw{Text: strings.Join(c.lines, "\n")}, nil
	}

	switch v := p.(type) {
	case contract.TextPrompt:
		return contract.Raw{Text: fmt.Sprintf("%s(text): %s", c.prefix, string(v))}, nil
	case contract.ChatPrompt:
		if len(v) == 0 {
			return contract.Raw{Text: fmt.Sprintf("%s(chat): <empty>", c.prefix)}, nil
		}
		// 取最后一条消息内容，避免打印过长
		last := v[len(v)-1]
		return contract.Raw{Text: fmt.Sprintf("%s(chat:%s): %s", c.prefix, last.Role, last.Content)}, nil
	default:
		return contract.Raw{Text: fmt.Sprintf("%s(unknown prompt type)", c.prefix)}, nil
	}
}

var _ contract.LLMClient = (*Client)(nil)
