package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"typogen/pkg/contract"
	"typogen/plugins/llmclient/internal/wire"
)

// Options: 最小必需配置（OpenAI 及兼容 /chat/completions 的服务）。
type Options struct {
	BaseURL        string   `json:"base_url"`        // 例如 https://api.openai.com/v1
	Model          string   `json:"model"`           // 为空则使用默认
	APIKeyEnv      string   `json:"api_key_env"`     // 优先从环境变量读取
	APIKey         string   `json:"api_key"`         // 明文传入（不推荐，按需用于测试）
	TimeoutSeconds int      `json:"timeout_seconds"` // 可选 client 级超时（秒）
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	// 第三方兼容（最小）：
	EndpointPath       string            `json:"endpoint_path"`        // 覆盖默认 /chat/completions；可为完整 URL
	DisableDefaultAuth bool              `json:"disable_default_auth"` // 关闭默认 Authorization: Bearer 注入
	ExtraHeaders       map[string]string `json:"extra_headers"`
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.openai.com/v1"
	}
	if o.Model == "" {
		o.Model = "gpt-4.1-mini"
	}
	if o.EndpointPath == "" {
		o.EndpointPath = "/chat/completions"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
}

// Client OpenAI Chat Completions 客户端。
type Client struct {
	url         string
	apiKey      string
	model       string
	temp        *float64
	maxTokens   int
	extraH      map[string]string
	disableAuth bool
	do          func(*http.Request) (*http.Response, error)
}

// New 构造客户端；缺少 key 时返回 ErrInvalidInput。
func New(opts *Options) (*Client, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.defaults()
	key := wire.ResolveKey(o.APIKey, o.APIKeyEnv, "OPENAI_API_KEY")
	if key == "" && !o.DisableDefaultAuth {
		return nil, fmt.Errorf("openai: %w: missing api key", contract.ErrInvalidInput)
	}
	hc := &http.Client{Timeout: time.Duration(o.TimeoutSeconds) * time.Second}
	return &Client{
		url:         wire.JoinURL(o.BaseURL, o.EndpointPath),
		apiKey:      key,
		model:       o.Model,
		temp:        o.Temperature,
		maxTokens:   o.MaxTokens,
		extraH:      o.ExtraHeaders,
		disableAuth: o.DisableDefaultAuth,
		do:          hc.Do,
	}, nil
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaReq struct {
	Model          string            `json:"model"`
	Messages       []oaMessage       `json:"messages"`
	Temperature    *float64          `json:"temperature,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat *oaResponseFormat `json:"response_format,omitempty"`
}

type oaResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// oaResponseFormat: json_schema 严格模式要求根为对象，数组 schema 包装在 variants 字段下。
type oaResponseFormat struct {
	Type       string        `json:"type"`
	JSONSchema *oaJSONSchema `json:"json_schema,omitempty"`
}

type oaJSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

func responseFormat(schema json.RawMessage) *oaResponseFormat {
	if len(schema) == 0 {
		return nil
	}
	wrapped := fmt.Sprintf(`{"type":"object","additionalProperties":false,"required":["variants"],"properties":{"variants":%s}}`, schema)
	return &oaResponseFormat{Type: "json_schema", JSONSchema: &oaJSONSchema{Name: "variants", Schema: json.RawMessage(wrapped), Strict: true}}
}

func (c *Client) encode(p contract.Prompt) ([]byte, error) {
	pp, schema := wire.SplitSchema(p)
	sys, msgs, err := wire.Messages(pp)
	if err != nil {
		return nil, err
	}
	req := oaReq{Model: c.model, Temperature: c.temp, MaxTokens: c.maxTokens, ResponseFormat: responseFormat(schema)}
	if sys != "" {
		req.Messages = append(req.Messages, oaMessage{Role: "system", Content: sys})
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, oaMessage{Role: m.Role, Content: m.Content})
	}
	return json.Marshal(&req)
}

// Invoke: 单次调用，同步返回。
func (c *Client) Invoke(ctx context.Context, _ contract.Request, p contract.Prompt) (contract.Raw, error) {
	body, err := c.encode(p)
	if err != nil {
		return contract.Raw{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return contract.Raw{}, fmt.Errorf("new request: %v: %w", err, contract.ErrInvalidInput)
	}
	if !c.disableAuth {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.extraH {
		if k != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := c.do(req)
	if err != nil {
		return contract.Raw{}, wire.Transport(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return contract.Raw{}, wire.FromStatus("openai", resp.StatusCode, string(slurp))
	}
	var or oaResp
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return contract.Raw{}, fmt.Errorf("openai decode: %w", contract.ErrResponseInvalid)
	}
	if len(or.Choices) == 0 || or.Choices[0].Message.Content == "" {
		return contract.Raw{}, fmt.Errorf("openai: empty choices: %w", contract.ErrResponseInvalid)
	}
	return contract.Raw{Text: or.Choices[0].Message.Content}, nil
}

var _ contract.LLMClient = (*Client)(nil)
