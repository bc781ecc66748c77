package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"typogen/internal/misspell"
	"typogen/internal/pipeline"
	"typogen/internal/protect"
	"typogen/internal/rate"
	"typogen/pkg/contract"
	"typogen/pkg/registry"
)

// defaultComponents: 组件名缺省值（与 env-default 保持一致，供直接构造的 Config 使用）。
var defaultComponents = Components{
	Reader:        "fs",
	Splitter:      "csv",
	Writer:        "fs",
	PromptBuilder: "misspell",
	Decoder:       "lines",
	Assembler:     "csvrows",
}

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if err := validate(cfg); err != nil {
		return fmt.Errorf("%w: %w", contract.ErrInvalidInput, err)
	}
	return nil
}

func validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	mode, err := pipeline.ParseMode(cfg.Mode)
	if err != nil {
		return fmt.Errorf("config: %v", err)
	}
	if cfg.N < 1 {
		return errors.New("config: n must be >= 1")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("config: max_retries must be >= 0")
	}
	if cfg.TimeoutSeconds <= 0 {
		return errors.New("config: timeout_seconds must be > 0")
	}
	if cfg.MaxEditRatio < 0 || cfg.MaxEditRatio > 1 {
		return fmt.Errorf("config: max_edit_ratio must be within [0,1], got %g", cfg.MaxEditRatio)
	}
	if name := effName(cfg.Components.Reader, defaultComponents.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Splitter, defaultComponents.Splitter); registry.Splitter[name] == nil {
		return fmt.Errorf("config: splitter %q not registered", name)
	}
	if name := effName(cfg.Components.Assembler, defaultComponents.Assembler); registry.Assembler[name] == nil {
		return fmt.Errorf("config: assembler %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, defaultComponents.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	if mode == pipeline.ModeRules {
		// rules 模式不触达后端：provider/prompt/decoder 均不校验
		return nil
	}
	if cfg.MaxTokens <= 0 {
		return errors.New("config: max_tokens must be > 0")
	}
	if cfg.LLM == "" {
		return fmt.Errorf("config: llm not set (required by mode %s)", mode)
	}
	prov, ok := cfg.Provider[cfg.LLM]
	if !ok {
		return fmt.Errorf("config: provider %q not found", cfg.LLM)
	}
	if prov.Client == "" {
		return fmt.Errorf("config: provider %q missing client", cfg.LLM)
	}
	if prov.Limits.MaxTokensPerReq > 0 && cfg.MaxTokens > prov.Limits.MaxTokensPerReq {
		return fmt.Errorf("config: max_tokens(%d) exceeds provider.max_tokens_per_req(%d)", cfg.MaxTokens, prov.Limits.MaxTokensPerReq)
	}
	if name := effName(cfg.Components.PromptBuilder, defaultComponents.PromptBuilder); registry.PromptBuilder[name] == nil {
		return fmt.Errorf("config: prompt_builder %q not registered", name)
	}
	if name := effName(cfg.Components.Decoder, defaultComponents.Decoder); registry.Decoder[name] == nil {
		return fmt.Errorf("config: decoder %q not registered", name)
	}
	if registry.LLMClient[prov.Client] == nil {
		return fmt.Errorf("config: llm client %q not registered", prov.Client)
	}
	return nil
}

// Assemble 构造 Components、Settings 与限流 Gate+Key。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// rules 模式下 Gate 为 nil、Key 为空。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, rate.Gate, rate.LimitKey, error) {
	fail := func(err error) (pipeline.Components, pipeline.Settings, rate.Gate, rate.LimitKey, error) {
		return pipeline.Components{}, pipeline.Settings{}, nil, "", err
	}
	if err := Validate(cfg); err != nil {
		return fail(err)
	}
	mode, _ := pipeline.ParseMode(cfg.Mode)

	c := cfg.Components
	build := func(name string, raw RawOptions, mk func([]byte) error) error {
		js, err := raw.JSON()
		if err != nil {
			return err
		}
		if err := mk(js); err != nil {
			return fmt.Errorf("config: build %s: %w", name, err)
		}
		return nil
	}

	var comp pipeline.Components
	steps := []struct {
		name string
		raw  RawOptions
		mk   func([]byte) error
	}{
		{"reader", cfg.Options.Reader, func(js []byte) (err error) {
			comp.Reader, err = registry.Reader[effName(c.Reader, defaultComponents.Reader)](js)
			return err
		}},
		{"splitter", cfg.Options.Splitter, func(js []byte) (err error) {
			comp.Splitter, err = registry.Splitter[effName(c.Splitter, defaultComponents.Splitter)](js)
			return err
		}},
		{"assembler", cfg.Options.Assembler, func(js []byte) (err error) {
			comp.Assembler, err = registry.Assembler[effName(c.Assembler, defaultComponents.Assembler)](js)
			return err
		}},
		{"writer", cfg.Options.Writer, func(js []byte) (err error) {
			comp.Writer, err = registry.Writer[effName(c.Writer, defaultComponents.Writer)](js)
			return err
		}},
	}
	for _, s := range steps {
		if err := build(s.name, s.raw, s.mk); err != nil {
			return fail(err)
		}
	}

	comp.Generator = misspell.New(&misspell.Options{MaxEditRatio: cfg.MaxEditRatio})
	comp.Protect = protect.NewSet(cfg.Protect.Terms)

	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Mode:        mode,
		N:           cfg.N,
		Concurrency: cfg.Concurrency,
		MaxRetries:  cfg.MaxRetries,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxTokens:   cfg.MaxTokens,
		Report:      cfg.Report,
	}
	if mode == pipeline.ModeRules {
		set.MaxTokens = 0
		return comp, set, nil, "", nil
	}

	backend := []struct {
		name string
		raw  RawOptions
		mk   func([]byte) error
	}{
		{"prompt_builder", cfg.Options.PromptBuilder, func(js []byte) (err error) {
			comp.PromptBuilder, err = registry.PromptBuilder[effName(c.PromptBuilder, defaultComponents.PromptBuilder)](js)
			return err
		}},
		{"decoder", cfg.Options.Decoder, func(js []byte) (err error) {
			comp.Decoder, err = registry.Decoder[effName(c.Decoder, defaultComponents.Decoder)](js)
			return err
		}},
	}
	for _, s := range backend {
		if err := build(s.name, s.raw, s.mk); err != nil {
			return fail(err)
		}
	}

	// LLM 客户端
	prov := cfg.Provider[cfg.LLM]
	provJS, err := prov.Options.JSON()
	if err != nil {
		return fail(err)
	}
	llm, err := registry.LLMClient[prov.Client](provJS)
	if err != nil {
		return fail(fmt.Errorf("config: build llm %s: %w", cfg.LLM, err))
	}
	comp.LLM = llm

	// 限流 Gate（按 provider 限额构造；分组键从 options 中派生 API Key）
	// 默认使用 API Key 派生分组键（更稳定）；若失败则退化为 provider 名称。
	key, derr := rate.DeriveKeyFromProviderOptions(prov.Client, provJS)
	if derr != nil {
		key = rate.LimitKey(cfg.LLM)
	}
	gate := rate.NewGate(map[rate.LimitKey]rate.Limits{
		key: {RPM: prov.Limits.RPM, TPM: prov.Limits.TPM, MaxTokensPerReq: prov.Limits.MaxTokensPerReq},
	}, nil)
	set.Gate = gate
	set.GateKey = key
	return comp, set, gate, key, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

// BuildLLM 按 cfg.LLM 指定的 provider 构造独立的 LLM 客户端（tableqa 等不经流水线的调用方）。
func BuildLLM(cfg Config) (contract.LLMClient, error) {
	name := strings.TrimSpace(cfg.LLM)
	if name == "" {
		return nil, fmt.Errorf("%w: llm provider not set", contract.ErrInvalidInput)
	}
	prov, ok := cfg.Provider[name]
	if !ok || strings.TrimSpace(prov.Client) == "" {
		return nil, fmt.Errorf("%w: provider %q not configured", contract.ErrInvalidInput, name)
	}
	mk, ok := registry.LLMClient[prov.Client]
	if !ok {
		return nil, fmt.Errorf("%w: llm client %q not registered", contract.ErrInvalidInput, prov.Client)
	}
	js, err := prov.Options.JSON()
	if err != nil {
		return nil, err
	}
	llm, err := mk(js)
	if err != nil {
		return nil, fmt.Errorf("config: build llm %s: %w", name, err)
	}
	return llm, nil
}
