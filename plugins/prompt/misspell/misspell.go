// Package misspell 构造“拼写变体生成”的 Chat 提示词。
package misspell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"typogen/internal/protect"
	"typogen/pkg/contract"
)

// Options 为拼写变体 PromptBuilder 的最小配置。
//   - InlineSystemTemplate / SystemTemplatePath: system 提示模板（二选一，均为空时使用内置默认模板）；
//   - Format: 期望的输出形态，lines（默认，每行一个）或 json（字符串数组，附带 json_schema）。
type Options struct {
	InlineSystemTemplate string `json:"inline_system_template"`
	SystemTemplatePath   string `json:"system_template_path"`
	Format               string `json:"format"`
}

// Builder: 以 Request 构造 ChatPrompt（system+user[+json_schema]）。
// 运行期不做 I/O；模板在构造期解析。
type Builder struct {
	sysT *template.Template
	json bool
}

// New 创建 PromptBuilder。
func New(opts *Options) (*Builder, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	src := defaultSystemTemplate
	if o.InlineSystemTemplate != "" {
		src = o.InlineSystemTemplate
	} else if o.SystemTemplatePath != "" {
		b, err := os.ReadFile(o.SystemTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("system template read: %w", err)
		}
		src = string(b)
	}
	tpl, err := template.New("system").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("system template parse: %w", err)
	}
	b := &Builder{sysT: tpl}
	switch strings.ToLower(o.Format) {
	case "", "lines":
	case "json":
		b.json = true
	default:
		return nil, fmt.Errorf("prompt: %w: unknown format %q", contract.ErrInvalidInput, o.Format)
	}
	return b, nil
}

// Build: 基于 Request 构造 ChatPrompt。
func (b *Builder) Build(ctx context.Context, req contract.Request) (contract.Prompt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Record.Query) == "" {
		return nil, fmt.Errorf("prompt: %w: empty query", contract.ErrInvalidInput)
	}
	if req.N < 1 {
		return nil, fmt.Errorf("prompt: %w: n must be >= 1", contract.ErrInvalidInput)
	}
	sys, err := b.system()
	if err != nil {
		return nil, err
	}
	var uw bytes.Buffer
	uw.WriteString("Query: ")
	uw.WriteString(req.Record.Query)
	uw.WriteString("\nProtected terms: ")
	uw.WriteString(protect.Describe(req.Protected))
	fmt.Fprintf(&uw, "\nNumber of variants: %d\n", req.N)
	uw.WriteString(b.rules())

	msgs := []contract.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: uw.String()},
	}
	if b.json {
		msgs = append(msgs, contract.Message{Role: "json_schema", Content: jsonSchema})
	}
	return contract.ChatPrompt(msgs), nil
}

// EstimateOverheadTokens: 与请求无关的固定提示词开销（system + 固定 user 规则 + schema）。
func (b *Builder) EstimateOverheadTokens(estimate contract.TokenEstimator) int {
	if estimate == nil {
		return 0
	}
	sys, _ := b.system()
	tokens := estimate(sys) + estimate("Query: \nProtected terms: \nNumber of variants: \n"+b.rules())
	if b.json {
		tokens += estimate(jsonSchema)
	}
	return tokens
}

func (b *Builder) system() (string, error) {
	var buf bytes.Buffer
	if err := b.sysT.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("system render: %w", contract.ErrInvalidInput)
	}
	return buf.String(), nil
}

func (b *Builder) rules() string {
	if b.json {
		return "\nReturn ONLY a strict JSON array of strings (no markdown, no code fences, no commentary)."
	}
	return "\nReturn ONLY the list of misspelled query strings, one per line, without numbering or commentary."
}

// 静态接口断言
var _ contract.PromptBuilder = (*Builder)(nil)

// 默认 system 模板。
const defaultSystemTemplate = `You are a search engine quality tester.
Task: Generate N distinct misspelling variants for the given search Query.

Guidelines:
1. PROTECT ABBREVIATIONS: Do NOT alter words that are all uppercase (e.g., JFK, NYC, USA, IBM), nor any listed protected term.
2. VARIETY: Ensure the variants cover these error types:
   - Phonetic (e.g., "mashine" for "machine")
   - Omission (e.g., "learnin" for "learning")
   - Transposition (e.g., "framewrok" for "framework")
   - Repetition (e.g., "apppplications" for "applications")
3. Every variant must differ from the Query and from every other variant.
4. OUTPUT: Return ONLY the list of misspelled query strings.
`

const jsonSchema = `{"type":"array","items":{"type":"string"}}`
