package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "typogen/internal/config"
	"typogen/internal/diag"
	"typogen/internal/termstore"
)

// overrides: run/gen 共用的 CLI 覆盖旗标。
type overrides struct {
	mode        string
	llm         string
	n           int
	concurrency int
	maxTokens   int
	maxRetries  int
	timeout     int
	protect     []string
}

func (o *overrides) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.mode, "mode", "", "生成模式 rules|llm|hybrid（覆盖配置）")
	f.StringVar(&o.llm, "llm", "", "provider 名称（覆盖配置）")
	f.IntVarP(&o.n, "n", "n", 0, "每条 query 的变体数（覆盖配置）")
	f.IntVar(&o.concurrency, "concurrency", 0, "并发度（覆盖配置）")
	f.IntVar(&o.maxTokens, "max-tokens", 0, "单请求最大 token 预算（覆盖配置）")
	// max-retries 允许显式设置为 0；默认 -1 表示“未覆盖”。
	f.IntVar(&o.maxRetries, "max-retries", -1, "后端调用最大重试次数（覆盖配置；0 表示不重试）")
	f.IntVar(&o.timeout, "timeout", 0, "单次后端调用超时秒数（覆盖配置）")
	f.StringSliceVar(&o.protect, "protect", nil, "额外保护词（可重复或逗号分隔；追加到配置）")
}

func (o *overrides) apply(cfg cfgpkg.Config) cfgpkg.Config {
	over := cfgpkg.Unset()
	over.Mode = o.mode
	over.LLM = o.llm
	if o.n > 0 {
		over.N = o.n
	}
	if o.concurrency > 0 {
		over.Concurrency = o.concurrency
	}
	if o.maxTokens > 0 {
		over.MaxTokens = o.maxTokens
	}
	if o.maxRetries >= 0 {
		over.MaxRetries = o.maxRetries
	}
	if o.timeout > 0 {
		over.TimeoutSeconds = o.timeout
	}
	over.Protect.Terms = o.protect
	return cfgpkg.Merge(cfg, over)
}

func (a *app) runCmd() *cobra.Command {
	var (
		ov        overrides
		out       string
		report    bool
		withTypes bool
	)
	cmd := &cobra.Command{
		Use:   "run [roots...]",
		Short: "处理 CSV 文件/目录（或 - 表示 STDIN），写出 <name>.misspelled.csv",
		RunE: func(cmd *cobra.Command, roots []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = ov.apply(cfg)
			if len(roots) > 0 {
				over := cfgpkg.Unset()
				over.Inputs = roots
				cfg = cfgpkg.Merge(cfg, over)
			}
			if out != "" {
				cfg.Options.Writer = withOption(cfg.Options.Writer, "output_dir", out)
			}
			if cmd.Flags().Changed("report") {
				cfg.Report = report
			}
			if withTypes {
				cfg.Options.Assembler = withOption(cfg.Options.Assembler, "with_types", true)
			}
			return a.run(cmd.Context(), cfg)
		},
	}
	ov.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出目录（覆盖 options.writer.output_dir；- 表示 STDOUT）")
	cmd.Flags().BoolVar(&report, "report", true, "写出 <artifact>.report.jsonl（覆盖配置）")
	cmd.Flags().BoolVar(&withTypes, "with-types", false, "输出附加 Error_Type 列")
	return cmd
}

func (a *app) run(ctx context.Context, cfg cfgpkg.Config) error {
	start := time.Now()
	logger := a.logger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := cfgpkg.Validate(cfg); err != nil {
		return fail(logger, "config", exitConfig, fmt.Errorf("配置校验失败: %w", err))
	}
	// 预检：若使用文件系统 Writer，检查输出目录的可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		return fail(logger, "config", exitConfig, fmt.Errorf("输出目录不可写或无法创建: %w", err))
	}
	terms, err := protectTerms(ctx, cfg)
	if err != nil {
		return fail(logger, "termstore", exitConfig, err)
	}
	cfg.Protect.Terms = terms

	comp, set, _, _, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return fail(logger, "config", exitConfig, fmt.Errorf("装配失败: %w", err))
	}
	logger.DebugStart("config", "effective", "", "", effectiveKV(cfg, len(terms)))

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(a.stderr, a.status)
	stats := &diag.Stats{}
	set.Terminal, set.Stats = term, stats
	backend := string(set.Mode)
	if comp.LLM != nil {
		backend += ":" + cfg.LLM
	}
	term.RunStart(cfg.Concurrency, backend)

	t := logger.Start("pipeline", "run")
	if err := pipelineRun(ctx, comp, set, logger); err != nil {
		term.RunFinish(false, time.Since(start), stats.Snapshot())
		return fail(logger, "pipeline", exitRuntime, err)
	}
	t.Finish("run", stats.Snapshot().Queries)
	logger.InfoFinish("pipeline", "summary", start, stats.Snapshot().Rows)
	term.RunFinish(true, time.Since(start), stats.Snapshot())
	return nil
}

// protectTerms 合并配置/CLI 保护词、词表文件与 Redis 集合。
func protectTerms(ctx context.Context, cfg cfgpkg.Config) ([]string, error) {
	src := termstore.Sources{Terms: cfg.Protect.Terms, Lexicon: cfg.Protect.Lexicon}
	if cfg.Protect.RedisAddr != "" {
		st, err := termstore.Open(redisOptions(cfg))
		if err != nil {
			return nil, err
		}
		defer st.Close()
		src.Store = st
	}
	return termstore.Collect(ctx, src)
}

func redisOptions(cfg cfgpkg.Config) termstore.Options {
	return termstore.Options{
		Addr:     cfg.Protect.RedisAddr,
		Password: cfg.Protect.RedisPassword,
		DB:       cfg.Protect.RedisDB,
		Key:      cfg.Protect.RedisKey,
	}
}

// withOption 返回追加/替换单个键后的选项副本。
func withOption(o cfgpkg.RawOptions, key string, val any) cfgpkg.RawOptions {
	out := make(cfgpkg.RawOptions, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	out[key] = val
	return out
}

// effectiveKV: 运行时配置摘要（已脱敏，不含密钥）。
func effectiveKV(cfg cfgpkg.Config, terms int) map[string]string {
	kv := map[string]string{
		"inputs_count":    strconv.Itoa(len(cfg.Inputs)),
		"mode":            cfg.Mode,
		"n":               strconv.Itoa(cfg.N),
		"concurrency":     strconv.Itoa(cfg.Concurrency),
		"max_tokens":      strconv.Itoa(cfg.MaxTokens),
		"max_retries":     strconv.Itoa(cfg.MaxRetries),
		"protected_terms": strconv.Itoa(terms),
		"llm":             cfg.LLM,
	}
	if p, ok := cfg.Provider[cfg.LLM]; ok && cfg.Mode != "rules" {
		kv["provider_client"] = p.Client
		for _, k := range []string{"base_url", "model", "endpoint_path"} {
			if s, ok := p.Options[k].(string); ok && s != "" {
				kv[k] = s
			}
		}
	}
	return kv
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：检查父目录是否可写（尝试在父目录创建并删除临时目录）。
// 仅针对 fs writer 生效；"-"（STDOUT）与其他 writer 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	if w := strings.TrimSpace(cfg.Components.Writer); w != "" && w != "fs" {
		return nil
	}
	dir, _ := cfg.Options.Writer["output_dir"].(string)
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == "-" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(filepath.Clean(dir))
	for {
		st, err := os.Stat(parent)
		if err == nil {
			if !st.IsDir() {
				return fmt.Errorf("父路径不是目录: %s", parent)
			}
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
		next := filepath.Dir(parent)
		if next == parent {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		parent = next
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
