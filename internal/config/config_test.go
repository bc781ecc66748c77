package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"typogen/internal/pipeline"
	"typogen/pkg/contract"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// 解析 YAML：文件值覆盖默认；max_retries 显式 0 生效
func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "typogen.yaml", `
inputs: [queries.csv]
mode: hybrid
max_retries: 0
llm: local
provider:
  local:
    client: mock
    options:
      response_mode: json
    limits:
      rpm: 10
options:
  writer:
    output_dir: out
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"queries.csv"}, cfg.Inputs)
	assert.Equal(t, "hybrid", cfg.Mode)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.N)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.Report)
	assert.Equal(t, "csv", cfg.Components.Splitter)
	assert.Equal(t, "typogen:protected", cfg.Protect.RedisKey)
	assert.Equal(t, "json", cfg.Provider["local"].Options["response_mode"])
	assert.Equal(t, 10, cfg.Provider["local"].Limits.RPM)
	require.NoError(t, Validate(cfg))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// ENV 覆盖 provider 字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"TYPOGEN_MODE=llm",
		"TYPOGEN_PROVIDER__mock__CLIENT=mock",
		"TYPOGEN_PROVIDER__mock__LIMITS_RPM=30",
		`TYPOGEN_PROVIDER__mock__OPTIONS_JSON={"response_mode":"fixed"}`,
		"TYPOGEN_PROVIDER__empty__CLIENT=",
		"OTHER=1",
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err)
	assert.Equal(t, -1, over.MaxRetries)
	require.Len(t, over.Provider, 1)
	p := over.Provider["mock"]
	assert.Equal(t, "mock", p.Client)
	assert.Equal(t, 30, p.Limits.RPM)
	assert.Equal(t, "fixed", p.Options["response_mode"])

	_, err = EnvOverlay([]string{"TYPOGEN_PROVIDER__x__LIMITS_TPM=abc"})
	assert.Error(t, err)
}

// Merge：over 零值不覆盖；保护词追加
func TestMerge(t *testing.T) {
	base := Defaults()
	base.N = 5
	base.Mode = "rules"
	base.Protect.Terms = []string{"Paris"}
	base.Provider = map[string]Provider{"p": {Client: "openai", Limits: Limits{RPM: 5}}}

	over := Unset()
	over.N = 3
	over.Protect.Terms = []string{"NASA"}
	over.Provider = map[string]Provider{"p": {Limits: Limits{TPM: 100}}}

	out := Merge(base, over)
	assert.Equal(t, 3, out.N)
	assert.Equal(t, "rules", out.Mode)
	assert.Equal(t, 2, out.MaxRetries)
	assert.Equal(t, []string{"Paris", "NASA"}, out.Protect.Terms)
	assert.Equal(t, Provider{Client: "openai", Limits: Limits{RPM: 5, TPM: 100}}, out.Provider["p"])

	over = Unset()
	over.MaxRetries = 0
	assert.Equal(t, 0, Merge(base, over).MaxRetries)
}

func validConfig() Config {
	cfg := Defaults()
	cfg.Inputs = []string{"in.csv"}
	cfg.Mode = "rules"
	cfg.N = 5
	cfg.Concurrency = 2
	cfg.TimeoutSeconds = 10
	cfg.MaxTokens = 512
	return cfg
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		ok   bool
	}{
		{"rules-without-provider", func(c *Config) {}, true},
		{"no-inputs", func(c *Config) { c.Inputs = nil }, false},
		{"dash-mixed", func(c *Config) { c.Inputs = []string{"-", "a.csv"} }, false},
		{"bad-mode", func(c *Config) { c.Mode = "magic" }, false},
		{"n-zero", func(c *Config) { c.N = 0 }, false},
		{"concurrency-zero", func(c *Config) { c.Concurrency = 0 }, false},
		{"negative-retries", func(c *Config) { c.MaxRetries = -1 }, false},
		{"timeout-zero", func(c *Config) { c.TimeoutSeconds = 0 }, false},
		{"edit-ratio", func(c *Config) { c.MaxEditRatio = 1.5 }, false},
		{"unknown-splitter", func(c *Config) { c.Components.Splitter = "srt" }, false},
		{"llm-without-provider", func(c *Config) { c.Mode = "llm" }, false},
		{"llm-unknown-client", func(c *Config) {
			c.Mode, c.LLM = "llm", "p"
			c.Provider = map[string]Provider{"p": {Client: "nope"}}
		}, false},
		{"llm-over-provider-cap", func(c *Config) {
			c.Mode, c.LLM = "hybrid", "p"
			c.Provider = map[string]Provider{"p": {Client: "mock", Limits: Limits{MaxTokensPerReq: 100}}}
		}, false},
		{"hybrid-mock", func(c *Config) {
			c.Mode, c.LLM = "hybrid", "p"
			c.Provider = map[string]Provider{"p": {Client: "mock"}}
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mut(&cfg)
			err := Validate(cfg)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, contract.ErrInvalidInput)
		})
	}
}

func TestAssembleRules(t *testing.T) {
	cfg := validConfig()
	cfg.Options.Writer = RawOptions{"output_dir": t.TempDir()}
	cfg.Protect.Terms = []string{"Paris"}
	comp, set, gate, key, err := Assemble(cfg)
	require.NoError(t, err)
	assert.Nil(t, gate)
	assert.Empty(t, key)
	assert.Nil(t, comp.LLM)
	assert.NotNil(t, comp.Generator)
	assert.True(t, comp.Protect.Contains("Paris"))
	assert.Equal(t, pipeline.ModeRules, set.Mode)
	assert.Equal(t, 0, set.MaxTokens)
}

func TestAssembleBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Mode, cfg.LLM = "llm", "local"
	cfg.Provider = map[string]Provider{"local": {Client: "mock", Limits: Limits{RPM: 10}}}
	cfg.Options.Writer = RawOptions{"output_dir": t.TempDir()}
	cfg.Options.Decoder = RawOptions{"max_line_bytes": 64}
	comp, set, gate, key, err := Assemble(cfg)
	require.NoError(t, err)
	require.NotNil(t, gate)
	assert.Equal(t, "mock", string(key))
	assert.Equal(t, key, set.GateKey)
	assert.NotNil(t, comp.LLM)
	assert.NotNil(t, comp.PromptBuilder)
	assert.NotNil(t, comp.Decoder)
	assert.Equal(t, 512, set.MaxTokens)

	cfg.Options.Decoder = RawOptions{"unknown": true}
	_, _, _, _, err = Assemble(cfg)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestAssembleWriterNeedsOutputDir(t *testing.T) {
	_, _, _, _, err := Assemble(validConfig())
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

// 模板可被重新解析并通过校验
func TestTemplateRoundTrip(t *testing.T) {
	b, err := TemplateYAML()
	require.NoError(t, err)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(b, &cfg))
	assert.Equal(t, []string{"-"}, cfg.Inputs)
	assert.Len(t, cfg.Provider, 5)
	require.NoError(t, Validate(cfg))

	cfg.Mode = "hybrid"
	require.NoError(t, Validate(cfg))

	env := string(TemplateEnv())
	assert.Contains(t, env, "# TYPOGEN_MODE=\n")
	assert.True(t, strings.Contains(env, "# TYPOGEN_PROVIDER__anthropic__OPTIONS_JSON="))
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	p := writeFile(t, ".env", "TYPOGEN_TEST_DOTENV=yes\n")
	t.Setenv("TYPOGEN_TEST_DOTENV", "")
	os.Unsetenv("TYPOGEN_TEST_DOTENV")
	require.NoError(t, LoadDotEnv(p))
	assert.Equal(t, "yes", os.Getenv("TYPOGEN_TEST_DOTENV"))
}

func TestBuildLLM(t *testing.T) {
	cfg := Config{LLM: "m", Provider: map[string]Provider{
		"m":   {Client: "mock", Options: RawOptions{"response_mode": "echo"}},
		"bad": {Client: "nope"},
	}}
	llm, err := BuildLLM(cfg)
	require.NoError(t, err)
	require.NotNil(t, llm)

	cfg.LLM = ""
	_, err = BuildLLM(cfg)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)

	cfg.LLM = "bad"
	_, err = BuildLLM(cfg)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)

	cfg.LLM = "missing"
	_, err = BuildLLM(cfg)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}
