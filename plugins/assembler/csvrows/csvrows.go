// Package csvrows 将单条 Query 的结果渲染为输出表（Topic, Original_Query, Misspelled_Query）的行。
package csvrows

import (
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"strings"

	"typogen/internal/misspell"
	"typogen/pkg/contract"
)

// Options 输出表形态。
type Options struct {
	// WithTypes: 追加 Error_Type 列（phonetic|omission|…|combined|unknown）。
	WithTypes bool `json:"with_types"`
	// NoHeader: 不写表头（追加到已有表时使用）。
	NoHeader bool `json:"no_header"`
}

// Header 默认表头。
var Header = []string{"Topic", "Original_Query", "Misspelled_Query"}

type assembler struct {
	withTypes bool
	noHeader  bool
}

// New 创建装配器。
func New(opts *Options) contract.Assembler {
	a := &assembler{}
	if opts != nil {
		a.withTypes, a.noHeader = opts.WithTypes, opts.NoHeader
	}
	return a
}

// Begin 返回表头单元。
func (a *assembler) Begin(ctx context.Context) (io.Reader, error) {
	if a.noHeader {
		return strings.NewReader(""), nil
	}
	h := Header
	if a.withTypes {
		h = append(append([]string{}, Header...), "Error_Type")
	}
	return a.render(func(w *stdcsv.Writer) error { return w.Write(h) })
}

// Assemble 将结果渲染为完整行集；失败结果为空单元。
// 批与请求不一致（Query 不同）时返回 ErrInvariantViolation。
func (a *assembler) Assemble(ctx context.Context, res contract.Result) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.Status == contract.StatusFailed || len(res.Batch.Variants) == 0 {
		return strings.NewReader(""), nil
	}
	rec := res.Request.Record
	if res.Batch.Query != rec.Query {
		return nil, fmt.Errorf("assemble: batch query %q != record query %q: %w", res.Batch.Query, rec.Query, contract.ErrInvariantViolation)
	}
	return a.render(func(w *stdcsv.Writer) error {
		for _, v := range res.Batch.Variants {
			row := []string{rec.Topic, rec.Query, v.Text}
			if a.withTypes {
				row = append(row, string(misspell.Label(v)))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// render 在内存中完成整块渲染，保证单元完整。
func (a *assembler) render(fn func(w *stdcsv.Writer) error) (io.Reader, error) {
	var buf bytes.Buffer
	w := stdcsv.NewWriter(&buf)
	if err := fn(w); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &buf, nil
}

var _ contract.Assembler = (*assembler)(nil)
