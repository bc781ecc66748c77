// Package lines 按“每行一个变体”的严格语法解码后端输出。
package lines

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"typogen/pkg/contract"
)

// Options: 解码宽松度。
type Options struct {
	// MaxLineBytes: 单行上限；0 表示 4*len(query)+16。
	MaxLineBytes int `json:"max_line_bytes"`
}

type decoder struct {
	maxLine int
}

// New 创建解码器。
func New(opts *Options) contract.Decoder {
	d := &decoder{}
	if opts != nil && opts.MaxLineBytes > 0 {
		d.maxLine = opts.MaxLineBytes
	}
	return d
}

// marker: 可选的行首序号/列表符号。序号（"1." "2)"）后空白可省略（"1.kat"）；
// 列表符号（"-" "*" "•"）后须有空白。
var marker = regexp.MustCompile(`^(?:\d{1,3}[.)]\s*|[-*•]\s+)`)

// quotePairs: 可剥离的成对引号。
var quotePairs = [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"}, {"`", "`"}}

// Decode 逐行解析：
//   - 空行忽略；
//   - 代码围栏、以冒号结尾的说明、词数与 query 相差超过 1 的散文、超长行：丢弃并计数；
//   - 剥离行首序号与成对引号后仍为空：丢弃并计数；
//   - 一行都未通过时返回 ErrResponseInvalid。
func (d *decoder) Decode(ctx context.Context, req contract.Request, raw contract.Raw) (contract.Candidates, error) {
	if err := ctx.Err(); err != nil {
		return contract.Candidates{}, err
	}
	q := req.Record.Query
	maxLine := d.maxLine
	if maxLine == 0 {
		maxLine = 4*len(q) + 16
	}
	words := len(strings.Fields(q))

	var out contract.Candidates
	for _, line := range strings.Split(strings.ReplaceAll(raw.Text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, ok := parseLine(line)
		if !ok || len(v) > maxLine || abs(len(strings.Fields(v))-words) > 1 {
			out.Dropped++
			continue
		}
		out.Lines = append(out.Lines, v)
	}
	if len(out.Lines) == 0 {
		return out, fmt.Errorf("decode lines: no variant in %d dropped lines: %w", out.Dropped, contract.ErrResponseInvalid)
	}
	return out, nil
}

func parseLine(line string) (string, bool) {
	if strings.HasPrefix(line, "```") || strings.HasSuffix(line, ":") {
		return "", false
	}
	line = strings.TrimSpace(marker.ReplaceAllString(line, ""))
	for _, p := range quotePairs {
		if len(line) >= len(p[0])+len(p[1]) && strings.HasPrefix(line, p[0]) && strings.HasSuffix(line, p[1]) {
			line = strings.TrimSpace(line[len(p[0]) : len(line)-len(p[1])])
			break
		}
	}
	line = strings.TrimSuffix(line, ",")
	if line == "" || strings.ContainsAny(line, "\t") {
		return "", false
	}
	return line, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var _ contract.Decoder = (*decoder)(nil)
