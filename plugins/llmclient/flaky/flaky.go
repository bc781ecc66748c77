package flaky

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"

	"typogen/pkg/contract"
	"typogen/plugins/llmclient/mock"
)

// Options 定义可选项。
type Options struct {
	// LogPath: 调试用日志文件，记录每次调用结果（可选）。
	LogPath string `json:"log_path,omitempty"`
}

// Client 是带状态的 LLM 实现：
// 第一次 Invoke 返回 ErrRateLimited；
// 第二次返回无法解析的散文；
// 之后委托 mock 规则模式返回编号列表。
type Client struct {
	logPath string
	count   atomic.Int32
	next    contract.LLMClient
}

// New 构造 Client。
func New(raw json.RawMessage) (contract.LLMClient, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	next, err := mock.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{logPath: o.LogPath, next: next}, nil
}

func (c *Client) log(s string) {
	if c.logPath == "" {
		return
	}
	// 追加写入，忽略错误。
	_ = appendFile(c.logPath, s+"\n")
}

// appendFile 以追加方式写入。
func appendFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

// Invoke 实现 contract.LLMClient。
func (c *Client) Invoke(ctx context.Context, req contract.Request, p contract.Prompt) (contract.Raw, error) {
	switch c.count.Add(1) {
	case 1:
		c.log("rate_limited")
		return contract.Raw{}, contract.ErrRateLimited
	case 2:
		c.log("prose")
		return contract.Raw{Text: "Sure! Here are some variants you might like."}, nil
	default:
		c.log("ok")
		return c.next.Invoke(ctx, req, p)
	}
}

var _ contract.LLMClient = (*Client)(nil)
