package contract

import "context"

// Raw: LLM 客户端返回的原始文本载荷。
// 约束：原样返回，不做清洗/截断/归一化。
type Raw struct {
	Text string
}

// LLMClient: 以 Request+Prompt 为单位与大模型交互，返回原始文本 Raw。
// 单次调用、同步返回；应尊重 ctx 取消/超时并及时释放资源。
// 实现不得持有进程级全局状态；所有配置在构造期注入。
type LLMClient interface {
	Invoke(ctx context.Context, req Request, p Prompt) (Raw, error)
}

// UpstreamError 承载 HTTP 上游错误的最小诊断信息（状态码 + 简短消息）。
type UpstreamError interface {
	error
	UpstreamStatus() int
	UpstreamMessage() string
}
