package config

// Config: 运行期只读配置（一次解析，运行期不变）。
// 文件支持 YAML/JSON（按扩展名），字段 snake_case；ENV 前缀 TYPOGEN_。
// 优先级：CLI > ENV > 文件 > 默认值。
// 0/false 有语义的字段（max_retries/report）不走 env-default，由 Defaults() 预置，
// 以便文件中显式写 0/false 生效。
type Config struct {
	Inputs []string `yaml:"inputs" json:"inputs" env:"TYPOGEN_INPUTS" env-separator:","`
	// Mode: rules | llm | hybrid
	Mode string `yaml:"mode" json:"mode" env:"TYPOGEN_MODE" env-default:"rules"`
	// N: 每条 query 需要的变体数（>=1）。
	N           int `yaml:"n" json:"n" env:"TYPOGEN_N" env-default:"5"`
	Concurrency int `yaml:"concurrency" json:"concurrency" env:"TYPOGEN_CONCURRENCY" env-default:"4"`
	// MaxRetries: 后端调用最大重试次数（>=0）。0 表示不重试。
	MaxRetries int `yaml:"max_retries" json:"max_retries" env:"TYPOGEN_MAX_RETRIES"`
	// TimeoutSeconds: 单次后端调用超时。
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds" env:"TYPOGEN_TIMEOUT_SECONDS" env-default:"60"`
	MaxTokens      int     `yaml:"max_tokens" json:"max_tokens" env:"TYPOGEN_MAX_TOKENS" env-default:"1024"`
	MaxEditRatio   float64 `yaml:"max_edit_ratio" json:"max_edit_ratio" env:"TYPOGEN_MAX_EDIT_RATIO" env-default:"0.5"`
	// Report: 是否写出 <artifact>.report.jsonl。
	Report bool `yaml:"report" json:"report" env:"TYPOGEN_REPORT"`

	Logging Logging `yaml:"logging" json:"logging"`
	Protect Protect `yaml:"protect" json:"protect"`

	Components Components `yaml:"components" json:"components"`
	// LLM: provider 名称（mode=rules 时可为空）。
	LLM      string              `yaml:"llm" json:"llm" env:"TYPOGEN_LLM"`
	Provider map[string]Provider `yaml:"provider" json:"provider"`

	// 各组件 Options 子树，转为 JSON 后传入工厂（严格解码）。
	Options Options `yaml:"options" json:"options"`

	TableQA TableQA `yaml:"tableqa" json:"tableqa"`
}

// Logging: 仅日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `yaml:"level" json:"level" env:"TYPOGEN_LOG_LEVEL" env-default:"info"`
}

// Protect: 运行级额外保护词来源。
type Protect struct {
	Terms []string `yaml:"terms" json:"terms" env:"TYPOGEN_PROTECT_TERMS" env-separator:","`
	// Lexicon: 每行一个词的词表文件（mmap 只读）。
	Lexicon       string `yaml:"lexicon" json:"lexicon" env:"TYPOGEN_PROTECT_LEXICON"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr" env:"TYPOGEN_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" json:"redis_password" env:"TYPOGEN_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db" env:"TYPOGEN_REDIS_DB"`
	RedisKey      string `yaml:"redis_key" json:"redis_key" env:"TYPOGEN_REDIS_KEY" env-default:"typogen:protected"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader        string `yaml:"reader" json:"reader" env:"TYPOGEN_COMPONENTS_READER" env-default:"fs"`
	Splitter      string `yaml:"splitter" json:"splitter" env:"TYPOGEN_COMPONENTS_SPLITTER" env-default:"csv"`
	Writer        string `yaml:"writer" json:"writer" env:"TYPOGEN_COMPONENTS_WRITER" env-default:"fs"`
	PromptBuilder string `yaml:"prompt_builder" json:"prompt_builder" env:"TYPOGEN_COMPONENTS_PROMPT_BUILDER" env-default:"misspell"`
	Decoder       string `yaml:"decoder" json:"decoder" env:"TYPOGEN_COMPONENTS_DECODER" env-default:"lines"`
	Assembler     string `yaml:"assembler" json:"assembler" env:"TYPOGEN_COMPONENTS_ASSEMBLER" env-default:"csvrows"`
}

// Options: 各组件的原样选项（YAML 映射，装配时转为 JSON）。
type Options struct {
	Reader        RawOptions `yaml:"reader" json:"reader"`
	Splitter      RawOptions `yaml:"splitter" json:"splitter"`
	Writer        RawOptions `yaml:"writer" json:"writer"`
	PromptBuilder RawOptions `yaml:"prompt_builder" json:"prompt_builder"`
	Decoder       RawOptions `yaml:"decoder" json:"decoder"`
	Assembler     RawOptions `yaml:"assembler" json:"assembler"`
}

// Provider: 命名 provider 定义（client 实现 + options + 限额）。
type Provider struct {
	Client  string     `yaml:"client" json:"client"`
	Options RawOptions `yaml:"options" json:"options"`
	Limits  Limits     `yaml:"limits" json:"limits"`
}

// Limits: 限流配置（仅承载；执行位于 rate.Gate）。
type Limits struct {
	RPM             int `yaml:"rpm" json:"rpm"`
	TPM             int `yaml:"tpm" json:"tpm"`
	MaxTokensPerReq int `yaml:"max_tokens_per_req" json:"max_tokens_per_req"`
}

// TableQA: tableqa 子命令配置。
type TableQA struct {
	// IngestorURL: nlm-ingestor 服务根地址；为空时本地抽取 PDF 文本。
	IngestorURL string   `yaml:"ingestor_url" json:"ingestor_url" env:"TYPOGEN_INGESTOR_URL"`
	Questions   []string `yaml:"questions" json:"questions"`
	// MaxContextBytes: 提示词上下文上限（0 表示不截断）。
	MaxContextBytes int `yaml:"max_context_bytes" json:"max_context_bytes" env:"TYPOGEN_TABLEQA_MAX_CONTEXT_BYTES" env-default:"60000"`
}
