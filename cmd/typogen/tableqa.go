package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "typogen/internal/config"
	"typogen/internal/tableqa"
)

func (a *app) tableqaCmd() *cobra.Command {
	var (
		src       string
		questions []string
		ingestor  string
		llmName   string
	)
	cmd := &cobra.Command{
		Use:   "tableqa",
		Short: "就 PDF 中的表格向 LLM 提问（可选经 nlm-ingestor 保留表格结构）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			over := cfgpkg.Unset()
			over.LLM = llmName
			over.TableQA.IngestorURL = ingestor
			over.TableQA.Questions = questions
			cfg = cfgpkg.Merge(cfg, over)
			if len(cfg.TableQA.Questions) == 0 {
				cfg.TableQA.Questions = tableqa.DefaultQuestions
			}

			logger := a.logger(cfg)
			defer func() { _ = logger.Sync() }()

			llm, err := cfgpkg.BuildLLM(cfg)
			if err != nil {
				return fail(logger, "config", exitConfig, err)
			}
			timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
			data, name, err := tableqa.Fetch(cmd.Context(), src, &http.Client{Timeout: timeout})
			if err != nil {
				return fail(logger, "tableqa", exitRuntime, err)
			}
			opts := tableqa.Options{
				IngestorURL:     cfg.TableQA.IngestorURL,
				MaxContextBytes: cfg.TableQA.MaxContextBytes,
				Timeout:         timeout,
			}
			doc, err := tableqa.BuildContext(cmd.Context(), opts, name, data, logger)
			if err != nil {
				return fail(logger, "tableqa", exitRuntime, err)
			}
			answers := tableqa.Ask(cmd.Context(), llm, opts, cfg.TableQA.Questions, doc, logger)
			failed := 0
			for i, ans := range answers {
				fmt.Fprintf(a.stdout, "Q%d: %s\n", i+1, ans.Question)
				if ans.Err != nil {
					failed++
					fmt.Fprintf(a.stdout, "A%d: <error: %v>\n\n", i+1, ans.Err)
					continue
				}
				fmt.Fprintf(a.stdout, "A%d: %s\n\n", i+1, ans.Text)
			}
			if err := cmd.Context().Err(); err != nil {
				return fail(logger, "tableqa", exitCanceled, err)
			}
			if failed > 0 {
				return &exitError{code: exitRuntime, err: fmt.Errorf("tableqa: %d/%d 题失败", failed, len(answers))}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&src, "pdf", "", "PDF 本地路径或 http(s) 地址")
	f.StringArrayVarP(&questions, "question", "q", nil, "问题（可重复；缺省使用配置或内置问题）")
	f.StringVar(&ingestor, "ingestor", "", "nlm-ingestor 地址（覆盖 tableqa.ingestor_url）")
	f.StringVar(&llmName, "llm", "", "provider 名称（覆盖配置）")
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}
