package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"typogen/internal/tableqa"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - rules 模式，无需任何后端或密钥；
// - 预置 mock/openai/ollama/gemini/anthropic 五个 provider，切换 mode/llm 即可使用；
// - 默认输入为 STDIN（"-"），Writer 输出到 ./out 目录；
// - 选项给出安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:         []string{"-"},
		Mode:           "rules",
		N:              5,
		Concurrency:    4,
		MaxRetries:     d.MaxRetries,
		TimeoutSeconds: 60,
		MaxTokens:      1024,
		MaxEditRatio:   0.5,
		Report:         d.Report,
		Logging:        Logging{Level: "info"},
		Protect:        Protect{Terms: []string{}, RedisKey: "typogen:protected"},
		Components:     defaultComponents,
		LLM:            "mock",
		Provider: map[string]Provider{
			"mock": {
				Client:  "mock",
				Options: RawOptions{"response_mode": "rules"},
				Limits:  Limits{RPM: 600, TPM: 100000, MaxTokensPerReq: 4096},
			},
			"openai": {
				Client: "openai",
				Options: RawOptions{
					"base_url":        "https://api.openai.com/v1",
					"model":           "gpt-4.1-mini",
					"api_key_env":     "OPENAI_API_KEY",
					"timeout_seconds": 60,
				},
				Limits: Limits{RPM: 60, TPM: 90000},
			},
			"ollama": {
				Client:  "ollama",
				Options: RawOptions{"base_url": "http://localhost:11434", "model": "llama3"},
			},
			"gemini": {
				Client:  "gemini",
				Options: RawOptions{"model": "gemini-2.5-flash", "api_key_env": "GOOGLE_API_KEY"},
				Limits:  Limits{RPM: 15, TPM: 250000},
			},
			"anthropic": {
				Client:  "anthropic",
				Options: RawOptions{"model": "claude-3-5-haiku-latest", "api_key_env": "ANTHROPIC_API_KEY", "max_tokens": 1024},
				Limits:  Limits{RPM: 50, TPM: 40000},
			},
		},
		TableQA: TableQA{
			Questions:       append([]string(nil), tableqa.DefaultQuestions...),
			MaxContextBytes: 60000,
		},
	}
	cfg.Options.Reader = RawOptions{
		"exclude_dir_names": []any{".git", "node_modules", "vendor"},
		"extensions":        []any{".csv"},
	}
	cfg.Options.Splitter = RawOptions{"topic_column": "Topic", "query_column": "Query"}
	cfg.Options.Writer = RawOptions{"output_dir": "out", "atomic": true}
	cfg.Options.PromptBuilder = RawOptions{"format": "lines"}
	cfg.Options.Assembler = RawOptions{"with_types": false}
	return cfg
}

// TemplateYAML 以 YAML 渲染默认模板（init-config 输出）。
func TemplateYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# typogen 配置模板；优先级：CLI > ENV(TYPOGEN_*) > 本文件 > 默认值\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultTemplateConfig()); err != nil {
		return nil, fmt.Errorf("config: render template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: render template: %w", err)
	}
	return buf.Bytes(), nil
}

// TemplateEnv 渲染 .env 模板：列出全部标量 ENV 键与 provider 级覆盖键（值留空）。
func TemplateEnv() []byte {
	keys := []string{
		"TYPOGEN_INPUTS", "TYPOGEN_MODE", "TYPOGEN_N", "TYPOGEN_CONCURRENCY",
		"TYPOGEN_MAX_RETRIES", "TYPOGEN_TIMEOUT_SECONDS", "TYPOGEN_MAX_TOKENS",
		"TYPOGEN_MAX_EDIT_RATIO", "TYPOGEN_REPORT", "TYPOGEN_LOG_LEVEL", "TYPOGEN_LLM",
		"TYPOGEN_PROTECT_TERMS", "TYPOGEN_PROTECT_LEXICON",
		"TYPOGEN_REDIS_ADDR", "TYPOGEN_REDIS_PASSWORD", "TYPOGEN_REDIS_DB", "TYPOGEN_REDIS_KEY",
		"TYPOGEN_INGESTOR_URL",
	}
	var b strings.Builder
	b.WriteString("# typogen 环境变量模板：取消注释并填写需要覆盖的键\n")
	for _, k := range keys {
		b.WriteString("# " + k + "=\n")
	}
	b.WriteString("\n# provider 级覆盖：TYPOGEN_PROVIDER__<name>__{CLIENT,OPTIONS_JSON,LIMITS_RPM,LIMITS_TPM,LIMITS_MAX_TOKENS_PER_REQ}\n")
	prov := DefaultTemplateConfig().Provider
	names := make([]string, 0, len(prov))
	for n := range prov {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&b, "# %sPROVIDER__%s__OPTIONS_JSON=\n", EnvPrefix, n)
	}
	b.WriteString("\n# 密钥\n# OPENAI_API_KEY=\n# GOOGLE_API_KEY=\n# ANTHROPIC_API_KEY=\n")
	return []byte(b.String())
}
