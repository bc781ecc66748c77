package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "typogen/internal/config"
)

// initConfigCmd 在目标目录写出 typogen.yaml 与 .env 模板；已存在的文件不覆盖。
func (a *app) initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "生成默认配置模板（typogen.yaml + .env）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return configErr("创建目录失败: %w", err)
			}
			y, err := cfgpkg.TemplateYAML()
			if err != nil {
				return &exitError{code: exitRuntime, err: err}
			}
			files := []struct {
				name string
				data []byte
			}{
				{"typogen.yaml", y},
				{".env", cfgpkg.TemplateEnv()},
			}
			for _, f := range files {
				p := filepath.Join(dir, f.name)
				err := writeExclusive(p, f.data)
				switch {
				case errors.Is(err, os.ErrExist):
					fmt.Fprintf(a.stderr, "跳过: %s 已存在\n", p)
				case err != nil:
					return &exitError{code: exitRuntime, err: err}
				default:
					fmt.Fprintf(a.stdout, "已写出 %s\n", p)
				}
			}
			return nil
		},
	}
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
