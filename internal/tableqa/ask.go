package tableqa

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"typogen/internal/diag"
	"typogen/pkg/contract"
)

// DefaultQuestions: 默认提问（针对季度财报中的表格）。
var DefaultQuestions = []string{
	"What were the Google Cloud revenues in Q1 2023 and Q1 2024?",
	"Calculate the exact dollar amount increase in 'Google Services' operating income from 2023 to 2024 based on the table.",
	"Sum up the 'TAC' (Traffic Acquisition Costs) paid to distribution partners and the TAC paid to Google Network partners for Q1 2024.",
}

// Prompt 构造单题提示词。
func Prompt(question, doc string) string {
	return fmt.Sprintf("Read the provided tables and answer: %s. Context:\n%s", question, doc)
}

// Answer 单题结果；Err 非空时 Text 为空。
type Answer struct {
	Question string
	Text     string
	Err      error
}

// Options 上下文构造与提问参数。
type Options struct {
	// IngestorURL 为空时本地抽取纯文本。
	IngestorURL string
	// MaxContextBytes: 上下文截断上限；<=0 不截断。
	MaxContextBytes int
	// Timeout: 单题调用超时；<=0 不限。
	Timeout time.Duration
}

// BuildContext 把 PDF 转为提示词上下文：有 ingestor 时渲染 HTML，否则本地纯文本。
func BuildContext(ctx context.Context, opts Options, name string, data []byte, logger *diag.Logger) (string, error) {
	if logger == nil {
		logger = diag.Nop()
	}
	var out string
	if opts.IngestorURL != "" {
		st := logger.StartWithKV("tableqa", "ingest", name, "", map[string]string{"url": opts.IngestorURL})
		blocks, err := NewIngestor(opts.IngestorURL, 0).Parse(ctx, name, data)
		if err != nil {
			logger.ErrorWith("tableqa", string(diag.Classify(err)), "ingest failed: "+err.Error(), st.Since(), name, "")
			return "", err
		}
		st.Finish("ingest", int64(len(blocks)))
		if out, err = RenderHTML(blocks); err != nil {
			return "", err
		}
	} else {
		st := logger.StartWith("tableqa", "extract", name, "")
		text, err := PlainText(data)
		if err != nil {
			logger.ErrorWith("tableqa", string(diag.Classify(err)), "extract failed: "+err.Error(), st.Since(), name, "")
			return "", err
		}
		st.Finish("extract", int64(len(text)))
		out = text
	}
	if opts.MaxContextBytes > 0 && len(out) > opts.MaxContextBytes {
		logger.WarnWithKV("tableqa", "", "context truncated", name, "", map[string]string{"bytes": strconv.Itoa(len(out)), "max": strconv.Itoa(opts.MaxContextBytes)})
		out = truncate(out, opts.MaxContextBytes)
	}
	return out, nil
}

// Ask 逐题串行询问；单题失败记录在 Answer.Err，不中断后续题目。ctx 取消时立即返回已得结果。
func Ask(ctx context.Context, llm contract.LLMClient, opts Options, questions []string, doc string, logger *diag.Logger) []Answer {
	if logger == nil {
		logger = diag.Nop()
	}
	out := make([]Answer, 0, len(questions))
	for i, q := range questions {
		if ctx.Err() != nil {
			break
		}
		id := fmt.Sprintf("q%d", i+1)
		st := logger.StartWith("tableqa", "ask", "", id)
		text, err := ask(ctx, llm, opts.Timeout, contract.Request{ID: id, Record: contract.Record{Index: contract.Index(i), Query: q}, N: 1}, Prompt(q, doc))
		if err != nil {
			logger.ErrorWith("tableqa", string(diag.Classify(err)), "ask failed: "+err.Error(), st.Since(), "", id)
		} else {
			st.Finish("ask", 1)
		}
		out = append(out, Answer{Question: q, Text: text, Err: err})
	}
	return out
}

func ask(ctx context.Context, llm contract.LLMClient, timeout time.Duration, req contract.Request, prompt string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	raw, err := llm.Invoke(ctx, req, contract.TextPrompt(prompt))
	if err != nil {
		return "", err
	}
	return raw.Text, nil
}

// truncate 按字节截断并回退到完整 UTF-8 边界。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
