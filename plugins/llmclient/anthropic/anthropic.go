package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"typogen/pkg/contract"
	"typogen/plugins/llmclient/internal/wire"
)

// Options: Anthropic Messages API 最小必需。
type Options struct {
	BaseURL        string   `json:"base_url"`    // 为空使用 SDK 默认端点
	Model          string   `json:"model"`       // 默认 claude-3-5-haiku-latest
	APIKeyEnv      string   `json:"api_key_env"` // 默认 ANTHROPIC_API_KEY
	APIKey         string   `json:"api_key"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	MaxTokens      int64    `json:"max_tokens,omitempty"` // 默认 1024
	Temperature    *float64 `json:"temperature,omitempty"`
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = "claude-3-5-haiku-latest"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1024
	}
}

// Client 基于 anthropic-sdk-go 的 Messages 调用；重试交由流水线统一策略，SDK 内部不重试。
type Client struct {
	api       sdk.Client
	model     string
	maxTokens int64
	temp      *float64
}

// New 构造客户端；缺少 key 时返回 ErrInvalidInput。
func New(opts *Options) (*Client, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.defaults()
	key := wire.ResolveKey(o.APIKey, o.APIKeyEnv, "ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("anthropic: %w: missing api key", contract.ErrInvalidInput)
	}
	ro := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: time.Duration(o.TimeoutSeconds) * time.Second}),
	}
	if o.BaseURL != "" {
		ro = append(ro, option.WithBaseURL(o.BaseURL))
	}
	return &Client{api: sdk.NewClient(ro...), model: o.Model, maxTokens: o.MaxTokens, temp: o.Temperature}, nil
}

// Invoke: 单次调用，同步返回；schema 消息仅用于提示，Messages API 无结构化输出参数。
func (c *Client) Invoke(ctx context.Context, _ contract.Request, p contract.Prompt) (contract.Raw, error) {
	pp, _ := wire.SplitSchema(p)
	system, msgs, err := wire.Messages(pp)
	if err != nil {
		return contract.Raw{}, err
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if c.temp != nil {
		params.Temperature = sdk.Float(*c.temp)
	}
	for _, m := range msgs {
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
	}
	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		var ae *sdk.Error
		if errors.As(err, &ae) {
			return contract.Raw{}, wire.FromStatus("anthropic", ae.StatusCode, ae.Error())
		}
		return contract.Raw{}, wire.Transport(ctx, err)
	}
	var sb strings.Builder
	for _, blk := range msg.Content {
		if blk.Type == "text" {
			sb.WriteString(blk.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return contract.Raw{}, fmt.Errorf("anthropic: empty content: %w", contract.ErrResponseInvalid)
	}
	return contract.Raw{Text: sb.String()}, nil
}

var _ contract.LLMClient = (*Client)(nil)
