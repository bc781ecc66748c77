package ollama

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

// Options: 本地 Ollama /api/chat（非流式）。
type Options struct {
	BaseURL        string   `json:"base_url"` // 默认 http://localhost:11434
	Model          string   `json:"model"`    // 默认 llama3
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:11434"
	}
	if o.Model == "" {
		o.Model = "llama3"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 120
	}
}

type Client struct {
	url   string
	model string
	temp  *float64
	do    func(*http.Request) (*http.Response, error)
}

func New(opts *Options) *Client {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.defaults()
	hc := &http.Client{Timeout: time.Duration(o.TimeoutSeconds) * time.Second}
	return &Client{url: wire.JoinURL(o.BaseURL, "/api/chat"), model: o.Model, temp: o.Temperature, do: hc.Do}
}

type olMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type olOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type olReq struct {
	Model    string          `json:"model"`
	Messages []olMessage     `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
	Options  *olOptions      `json:"options,omitempty"`
}

type olResp struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

func (c *Client) encode(p contract.Prompt) ([]byte, error) {
	pp, schema := wire.SplitSchema(p)
	sys, msgs, err := wire.Messages(pp)
	if err != nil {
		return nil, err
	}
	req := olReq{Model: c.model, Format: schema}
	if c.temp != nil {
		req.Options = &olOptions{Temperature: c.temp}
	}
	if sys != "" {
		req.Messages = append(req.Messages, olMessage{Role: "system", Content: sys})
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, olMessage{Role: m.Role, Content: m.Content})
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
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return contract.Raw{}, wire.Transport(ctx, err)
	}
	defer resp.Body.Close()
	slurp, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return contract.Raw{}, wire.Transport(ctx, err)
	}
	var or olResp
	decErr := json.Unmarshal(slurp, &or)
	if resp.StatusCode/100 != 2 {
		msg := string(slurp)
		if decErr == nil && or.Error != "" {
			msg = or.Error
		}
		return contract.Raw{}, wire.FromStatus("ollama", resp.StatusCode, msg)
	}
	if decErr != nil {
		return contract.Raw{}, fmt.Errorf("ollama decode: %w", contract.ErrResponseInvalid)
	}
	if or.Message.Content == "" {
		return contract.Raw{}, fmt.Errorf("ollama: empty message: %w", contract.ErrResponseInvalid)
	}
	return contract.Raw{Text: or.Message.Content}, nil
}

var _ contract.LLMClient = (*Client)(nil)
