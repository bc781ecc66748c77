package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "typogen/internal/config"
	"typogen/internal/misspell"
	"typogen/internal/pipeline"
	"typogen/pkg/contract"
)

func (a *app) genCmd() *cobra.Command {
	var (
		ov    overrides
		topic string
	)
	cmd := &cobra.Command{
		Use:   "gen <query>",
		Short: "为单条 query 生成变体并打印（变体<TAB>类型）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = ov.apply(cfg)
			// 单条模式不经 Reader/Writer；补齐校验所需的占位
			if len(cfg.Inputs) == 0 {
				cfg.Inputs = []string{"-"}
			}
			if s, _ := cfg.Options.Writer["output_dir"].(string); strings.TrimSpace(s) == "" {
				cfg.Options.Writer = withOption(cfg.Options.Writer, "output_dir", "-")
			}

			logger := a.logger(cfg)
			defer func() { _ = logger.Sync() }()

			terms, err := protectTerms(cmd.Context(), cfg)
			if err != nil {
				return fail(logger, "termstore", exitConfig, err)
			}
			cfg.Protect.Terms = terms
			comp, set, _, _, err := cfgpkg.Assemble(cfg)
			if err != nil {
				return fail(logger, "config", exitConfig, fmt.Errorf("装配失败: %w", err))
			}
			res, err := pipeline.One(cmd.Context(), comp, set, logger, contract.Record{Topic: topic, Query: args[0]})
			if err != nil {
				return fail(logger, "pipeline", exitConfig, err)
			}
			if res.Status == contract.StatusFailed {
				return fail(logger, "pipeline", exitRuntime, res.Err)
			}
			for _, v := range res.Batch.Variants {
				fmt.Fprintf(a.stdout, "%s\t%s\n", v.Text, misspell.Label(v))
			}
			if res.Status == contract.StatusPartial {
				var pe *contract.PartialError
				if errors.As(res.Err, &pe) {
					fmt.Fprintf(a.stderr, "提示: 仅生成 %d/%d 个变体\n", pe.Got, pe.Want)
				} else {
					fmt.Fprintf(a.stderr, "提示: 变体不足 %d 个\n", res.Batch.Want)
				}
			}
			return nil
		},
	}
	ov.bind(cmd)
	cmd.Flags().StringVar(&topic, "topic", "", "query 所属主题（仅用于提示词）")
	return cmd
}
