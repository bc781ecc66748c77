package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvPrefix: 本工具读取的环境变量前缀。
const EnvPrefix = "TYPOGEN_"

// Defaults 返回预置默认值（cleanenv 的 env-default 之外、0/false 有语义的字段）。
func Defaults() Config {
	return Config{
		MaxRetries: 2,
		Report:     true,
	}
}

// Load 读取配置：path 非空时读文件（YAML/JSON，按扩展名）+ ENV；否则仅 ENV。
// 之后叠加 provider 级 ENV（EnvOverlay）。
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("config: read env: %w", err)
	}
	over, err := EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	return Merge(cfg, over), nil
}

// LoadDotEnv 读取 .env 并注入进程环境（不覆盖已存在的变量）；文件不存在时忽略。
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Merge 按优先级合并（over 覆盖 base）。
// 仅标量/字符串/原样选项为替换；不做深度合并。
// 约定：over 的零值表示未覆盖；MaxRetries 以 -1 表示未覆盖（0 有语义）。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if s := strings.TrimSpace(over.Mode); s != "" {
		out.Mode = s
	}
	if over.N != 0 {
		out.N = over.N
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.MaxRetries >= 0 {
		out.MaxRetries = over.MaxRetries
	}
	if over.TimeoutSeconds != 0 {
		out.TimeoutSeconds = over.TimeoutSeconds
	}
	if over.MaxTokens != 0 {
		out.MaxTokens = over.MaxTokens
	}
	if over.MaxEditRatio != 0 {
		out.MaxEditRatio = over.MaxEditRatio
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}

	// 保护词：CLI 追加而非替换
	if len(over.Protect.Terms) > 0 {
		out.Protect.Terms = append(cloneStrings(out.Protect.Terms), over.Protect.Terms...)
	}
	if over.Protect.Lexicon != "" {
		out.Protect.Lexicon = over.Protect.Lexicon
	}
	if over.Protect.RedisAddr != "" {
		out.Protect.RedisAddr = over.Protect.RedisAddr
	}

	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Splitter != "" {
		out.Components.Splitter = over.Components.Splitter
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}
	if over.Components.PromptBuilder != "" {
		out.Components.PromptBuilder = over.Components.PromptBuilder
	}
	if over.Components.Decoder != "" {
		out.Components.Decoder = over.Components.Decoder
	}
	if over.Components.Assembler != "" {
		out.Components.Assembler = over.Components.Assembler
	}

	// Provider：按字段覆盖对应键（ENV 常只给出部分字段）
	if len(over.Provider) > 0 {
		merged := make(map[string]Provider, len(out.Provider)+len(over.Provider))
		for k, v := range out.Provider {
			merged[k] = v
		}
		for k, v := range over.Provider {
			p := merged[k]
			if v.Client != "" {
				p.Client = v.Client
			}
			if len(v.Options) > 0 {
				p.Options = v.Options.clone()
			}
			if v.Limits.RPM != 0 {
				p.Limits.RPM = v.Limits.RPM
			}
			if v.Limits.TPM != 0 {
				p.Limits.TPM = v.Limits.TPM
			}
			if v.Limits.MaxTokensPerReq != 0 {
				p.Limits.MaxTokensPerReq = v.Limits.MaxTokensPerReq
			}
			merged[k] = p
		}
		out.Provider = merged
	}

	if len(over.Options.Reader) > 0 {
		out.Options.Reader = over.Options.Reader.clone()
	}
	if len(over.Options.Splitter) > 0 {
		out.Options.Splitter = over.Options.Splitter.clone()
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = over.Options.Writer.clone()
	}
	if len(over.Options.PromptBuilder) > 0 {
		out.Options.PromptBuilder = over.Options.PromptBuilder.clone()
	}
	if len(over.Options.Decoder) > 0 {
		out.Options.Decoder = over.Options.Decoder.clone()
	}
	if len(over.Options.Assembler) > 0 {
		out.Options.Assembler = over.Options.Assembler.clone()
	}

	if s := strings.TrimSpace(over.LLM); s != "" {
		out.LLM = s
	}
	if over.TableQA.IngestorURL != "" {
		out.TableQA.IngestorURL = over.TableQA.IngestorURL
	}
	if len(over.TableQA.Questions) > 0 {
		out.TableQA.Questions = cloneStrings(over.TableQA.Questions)
	}
	return out
}

// Unset 返回一个“全部未覆盖”的覆盖层（用于构造 CLI 覆盖）。
func Unset() Config { return Config{MaxRetries: -1} }

// EnvOverlay 从环境变量构建 provider 级覆盖（cleanenv 无法表达动态 map 键）：
//
//	TYPOGEN_PROVIDER__<name>__CLIENT
//	TYPOGEN_PROVIDER__<name>__LIMITS_{RPM,TPM,MAX_TOKENS_PER_REQ}
//	TYPOGEN_PROVIDER__<name>__OPTIONS_JSON
//
// 其他键由 cleanenv 的 env 标签处理，这里忽略。
func EnvOverlay(environ []string) (Config, error) {
	over := Unset()
	prov := map[string]Provider{}
	const pfx = EnvPrefix + "PROVIDER__"
	for _, kv := range environ {
		if !strings.HasPrefix(kv, pfx) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		parts := strings.SplitN(kv[len(pfx):eq], "__", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			continue
		}
		name, field, val := strings.TrimSpace(parts[0]), parts[1], strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空文件配置
			continue
		}
		p := prov[name]
		switch field {
		case "CLIENT":
			p.Client = val
		case "LIMITS_RPM", "LIMITS_TPM", "LIMITS_MAX_TOKENS_PER_REQ":
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("config: %s: %w", kv[:eq], err)
			}
			switch field {
			case "LIMITS_RPM":
				p.Limits.RPM = v
			case "LIMITS_TPM":
				p.Limits.TPM = v
			default:
				p.Limits.MaxTokensPerReq = v
			}
		case "OPTIONS_JSON":
			o, err := ParseRawOptions(val)
			if err != nil {
				return over, fmt.Errorf("config: %s: %w", kv[:eq], err)
			}
			p.Options = o
		default:
			continue
		}
		prov[name] = p
	}
	if len(prov) > 0 {
		over.Provider = prov
	}
	return over, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func atoi(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
