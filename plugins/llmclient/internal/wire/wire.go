// Package wire 汇集各 LLM 客户端共享的提示词拆解与上游错误映射。
package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"typogen/pkg/contract"
)

// ResolveKey: 明文 key 优先，其次 envName，最后 defEnv。
func ResolveKey(key, envName, defEnv string) string {
	if key != "" {
		return key
	}
	if envName == "" {
		envName = defEnv
	}
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// UpstreamError 实现 net.Error，用于将 HTTP 上游 5xx/408 映射为网络类错误，便于分类。
type UpstreamError struct {
	Provider string
	Status   int
	Msg      string
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream %d: %s", e.Provider, e.Status, e.Msg)
}
func (e UpstreamError) Timeout() bool           { return e.Status == http.StatusRequestTimeout }
func (e UpstreamError) Temporary() bool         { return e.Status/100 == 5 }
func (e UpstreamError) UpstreamStatus() int     { return e.Status }
func (e UpstreamError) UpstreamMessage() string { return e.Msg }

var _ contract.UpstreamError = UpstreamError{}

// FromStatus 将非 2xx 状态映射为分类错误：
//   - 429 → ErrRateLimited；
//   - 408/5xx → UpstreamError（网络类，可重试）；
//   - 其余 4xx → ErrInvalidInput（配置/请求错误，不重试）。
func FromStatus(provider string, status int, body string) error {
	msg := strings.TrimSpace(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	switch {
	case status/100 == 2:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s upstream %d: %w", provider, status, contract.ErrRateLimited)
	case status == http.StatusRequestTimeout || status/100 == 5:
		return UpstreamError{Provider: provider, Status: status, Msg: msg}
	default:
		return fmt.Errorf("%s upstream %d: %s: %w", provider, status, msg, contract.ErrInvalidInput)
	}
}

// Transport 归一化传输层错误：ctx 取消/超时原样返回 ctx 错误。
func Transport(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	return err
}

// SplitSchema: 若 Prompt 中包含 role=="json_schema" 的消息，解析其 Content 并从对话中移除。
// 未找到或解析失败则返回原 Prompt 与空 schema。
func SplitSchema(p contract.Prompt) (contract.Prompt, json.RawMessage) {
	cp, ok := p.(contract.ChatPrompt)
	if !ok {
		return p, nil
	}
	out := make(contract.ChatPrompt, 0, len(cp))
	var schema json.RawMessage
	for _, m := range cp {
		if strings.EqualFold(strings.TrimSpace(m.Role), "json_schema") {
			var raw json.RawMessage
			if json.Unmarshal([]byte(m.Content), &raw) == nil && len(raw) > 0 {
				schema = raw
			}
			continue
		}
		out = append(out, m)
	}
	return out, schema
}

// Messages 将 Prompt 拆为 system 与会话消息；TextPrompt 视为单条 user 消息。
func Messages(p contract.Prompt) (system string, msgs []contract.Message, err error) {
	switch v := p.(type) {
	case contract.TextPrompt:
		return "", []contract.Message{{Role: "user", Content: string(v)}}, nil
	case contract.ChatPrompt:
		system, msgs = v.Split()
		if len(msgs) == 0 {
			return "", nil, fmt.Errorf("prompt: %w: no user message", contract.ErrInvalidInput)
		}
		return system, msgs, nil
	default:
		return "", nil, fmt.Errorf("prompt: %w: unsupported type %T", contract.ErrInvalidInput, p)
	}
}

// JoinURL 健壮拼接 base 与 path；path 为完整 URL 时原样返回。
func JoinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
