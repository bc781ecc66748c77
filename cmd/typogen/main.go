package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "typogen/internal/config"
	"typogen/internal/diag"
	"typogen/internal/pipeline"
)

// 测试替换点。
var (
	pipelineRun = pipeline.Run
	newLogger   = diag.NewLogger
)

// 退出码：0 成功；1 运行期失败；2 用户取消；3 配置/装配错误。
const (
	exitOK       = 0
	exitRuntime  = 1
	exitCanceled = 2
	exitConfig   = 3
)

// exitError 携带退出码的错误。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(format string, a ...any) error {
	return &exitError{code: exitConfig, err: fmt.Errorf(format, a...)}
}

// app 各子命令共享的运行上下文。
type app struct {
	stdout io.Writer
	stderr io.Writer
	corrID string

	// 全局旗标
	configPath string
	envFile    string
	logLevel   string
	status     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 构造命令树并运行，返回退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, corrID: uuid.NewString()}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		if ee.code != exitCanceled {
			fmt.Fprintf(stderr, "错误: %v\n", ee.err)
		}
		return ee.code
	case errors.Is(err, context.Canceled):
		return exitCanceled
	default:
		// cobra 的参数/旗标错误
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return exitConfig
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "typogen",
		Short:         "为搜索 query 批量生成带类型标注的拼写变体",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "配置文件（YAML/JSON）；缺省读取 TYPOGEN_CONFIG_FILE 或 ./typogen.yaml（若存在）")
	pf.StringVar(&a.envFile, "env-file", ".env", ".env 文件路径（不覆盖已有环境变量）")
	pf.StringVar(&a.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	pf.BoolVar(&a.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")

	root.AddCommand(a.runCmd(), a.genCmd(), a.termsCmd(), a.tableqaCmd(), a.initConfigCmd())
	return root
}

// loadConfig: .env → 文件/ENV → provider 级 ENV；CLI 覆盖由调用方 Merge。
func (a *app) loadConfig() (cfgpkg.Config, error) {
	if err := cfgpkg.LoadDotEnv(a.envFile); err != nil {
		return cfgpkg.Config{}, configErr(".env 解析失败: %w", err)
	}
	path := a.configPath
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"typogen.yaml", "typogen.yml", "typogen.json"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, configErr("配置解析失败: %w", err)
	}
	if s := strings.TrimSpace(a.logLevel); s != "" {
		cfg.Logging.Level = s
	}
	return cfg, nil
}

func (a *app) logger(cfg cfgpkg.Config) *diag.Logger {
	return newLogger(a.corrID, cfg.Logging.Level)
}

// fail 记录首个错误并包装退出码：取消 → 2，其余 → code。
func fail(logger *diag.Logger, comp string, code int, err error) error {
	if errors.Is(err, context.Canceled) {
		logger.Error(comp, string(diag.CodeCancel), "cancelled", nil)
		return &exitError{code: exitCanceled, err: err}
	}
	logger.Error(comp, string(diag.Classify(err)), "first error: "+err.Error(), nil)
	return &exitError{code: code, err: err}
}
