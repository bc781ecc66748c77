package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"typogen/pkg/contract"
	"typogen/plugins/llmclient/internal/wire"
)

// Options: Gemini API（google.golang.org/genai）最小必需。
type Options struct {
	BaseURL   string `json:"base_url"`    // 为空使用 SDK 默认端点
	Model     string `json:"model"`       // 默认 gemini-2.5-flash
	APIKeyEnv string `json:"api_key_env"` // 默认 GOOGLE_API_KEY
	APIKey    string `json:"api_key"`
	// 客户端超时（秒）。未设置或 <=0 时采用默认 60 秒。
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	Temperature    *float32 `json:"temperature,omitempty"`
	// JSON 输出 MIME：仅当 Prompt 携带 schema 时生效；为空则使用 application/json
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = "gemini-2.5-flash"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
	if o.ResponseMIMEType == "" {
		o.ResponseMIMEType = "application/json"
	}
}

// Client 基于 genai SDK 的 generateContent 调用。
type Client struct {
	models   *genai.Models
	model    string
	temp     *float32
	respMIME string
}

// New 构造客户端；缺少 key 时返回 ErrInvalidInput。
func New(ctx context.Context, opts *Options) (*Client, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.defaults()
	key := wire.ResolveKey(o.APIKey, o.APIKeyEnv, "GOOGLE_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("gemini: %w: missing api key", contract.ErrInvalidInput)
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: time.Duration(o.TimeoutSeconds) * time.Second},
	}
	if o.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %v: %w", err, contract.ErrInvalidInput)
	}
	return &Client{models: gc.Models, model: o.Model, temp: o.Temperature, respMIME: o.ResponseMIMEType}, nil
}

// config 组装 system 指令与 JSON 输出约束。
func (c *Client) config(system string, schema json.RawMessage) (*genai.GenerateContentConfig, error) {
	gc := &genai.GenerateContentConfig{Temperature: c.temp}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(schema) > 0 {
		s, err := toSchema(schema)
		if err != nil {
			return nil, fmt.Errorf("gemini schema: %v: %w", err, contract.ErrInvalidInput)
		}
		gc.ResponseMIMEType = c.respMIME
		gc.ResponseSchema = s
	}
	return gc, nil
}

// Invoke: 单次调用，同步返回。
func (c *Client) Invoke(ctx context.Context, _ contract.Request, p contract.Prompt) (contract.Raw, error) {
	pp, schema := wire.SplitSchema(p)
	system, msgs, err := wire.Messages(pp)
	if err != nil {
		return contract.Raw{}, err
	}
	gc, err := c.config(system, schema)
	if err != nil {
		return contract.Raw{}, err
	}
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, gc)
	if err != nil {
		return contract.Raw{}, mapErr(ctx, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return contract.Raw{}, fmt.Errorf("gemini: empty candidates: %w", contract.ErrResponseInvalid)
	}
	return contract.Raw{Text: text}, nil
}

// mapErr: genai.APIError 按 HTTP 状态分类，其余按传输层错误处理。
func mapErr(ctx context.Context, err error) error {
	var ae genai.APIError
	if errors.As(err, &ae) {
		return wire.FromStatus("gemini", ae.Code, ae.Message)
	}
	var pae *genai.APIError
	if errors.As(err, &pae) && pae != nil {
		return wire.FromStatus("gemini", pae.Code, pae.Message)
	}
	return wire.Transport(ctx, err)
}

// jsonSchema: JSON Schema 的最小子集（type/items/properties/required/enum）。
type jsonSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Items       *jsonSchema            `json:"items,omitempty"`
	Properties  map[string]*jsonSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
}

func toSchema(raw json.RawMessage) (*genai.Schema, error) {
	var js jsonSchema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, err
	}
	return js.convert()
}

func (js *jsonSchema) convert() (*genai.Schema, error) {
	s := &genai.Schema{Description: js.Description, Required: js.Required, Enum: js.Enum}
	switch strings.ToLower(js.Type) {
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	case "object":
		s.Type = genai.TypeObject
	default:
		return nil, fmt.Errorf("unsupported type %q", js.Type)
	}
	if js.Items != nil {
		it, err := js.Items.convert()
		if err != nil {
			return nil, err
		}
		s.Items = it
	}
	if len(js.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(js.Properties))
		for k, v := range js.Properties {
			ps, err := v.convert()
			if err != nil {
				return nil, err
			}
			s.Properties[k] = ps
		}
	}
	return s, nil
}

var _ contract.LLMClient = (*Client)(nil)
