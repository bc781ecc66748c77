package contract

import "context"

// Prompt: 不透明载荷，由具体 PromptBuilder/LLMClient 配对解释。
type Prompt any

// Message: 最小会话消息形状。
type Message struct {
	Role    string
	Content string
}

// TextPrompt: 文本型提示词载荷。
type TextPrompt string

// ChatPrompt: 会话型提示词载荷（system/user/assistant）。
type ChatPrompt []Message

// Split 拆出 system 与其余消息（system 多条时以空行拼接）。
func (c ChatPrompt) Split() (system string, rest []Message) {
	for _, m := range c {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// PromptBuilder: 基于 Request 构造确定性的 Prompt。
// 约束：
//   - 纯计算，不做 I/O；
//   - 不修改 Query 与保护词；
//   - 失败快速返回错误。
type PromptBuilder interface {
	Build(ctx context.Context, req Request) (Prompt, error)
	// EstimateOverheadTokens: 与请求无关的固定提示词开销（近似 token 数）。
	EstimateOverheadTokens(estimate TokenEstimator) int
}

// TokenEstimator: 文本→token 的近似估算函数。
type TokenEstimator func(s string) int
