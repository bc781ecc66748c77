// Package prompt 提供提示词规模的近似估算。
package prompt

import "typogen/pkg/contract"

// DefaultBytesPerToken: 估算器默认每 token 字节数。
const DefaultBytesPerToken = 4

// MakeEstimator 返回近似 token 估算器：tokens ≈ ceil(len(utf8_bytes)/bytesPerToken)。
func MakeEstimator(bytesPerToken int) contract.TokenEstimator {
	bpt := bytesPerToken
	if bpt <= 0 {
		bpt = DefaultBytesPerToken
	}
	return func(s string) int {
		if len(s) == 0 {
			return 0
		}
		return (len(s) + bpt - 1) / bpt
	}
}

// PromptTokens 估算 Prompt 实际文本的 token 数；未知载荷返回 0。
func PromptTokens(p contract.Prompt, est contract.TokenEstimator) int {
	switch v := p.(type) {
	case contract.TextPrompt:
		return est(string(v))
	case contract.ChatPrompt:
		total := 0
		for _, m := range v {
			total += est(m.Content)
		}
		return total
	default:
		return 0
	}
}

// RequestTokens 估算一次生成请求的总 token：提示词 + 预期输出（n 行，每行约为 query 长度加序号）。
func RequestTokens(p contract.Prompt, req contract.Request, est contract.TokenEstimator) int {
	perLine := est(req.Record.Query) + 2
	return PromptTokens(p, est) + req.N*perLine
}

// EffectiveMaxTokens 计算预扣固定提示开销后的有效预算。
// 返回 (effectiveMax, overheadTokens)；maxTokens<=0 时返回 (0,0)。
func EffectiveMaxTokens(pb contract.PromptBuilder, bytesPerToken int, maxTokens int) (int, int) {
	if maxTokens <= 0 {
		return 0, 0
	}
	overhead := pb.EstimateOverheadTokens(MakeEstimator(bytesPerToken))
	return maxTokens - overhead, overhead
}
