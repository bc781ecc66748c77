// Package csv 将查询表（Topic, Query）拆分为 Record。
package csv

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"typogen/pkg/contract"
)

// Options 为 CSV Splitter 的可选配置（最小必要）。
type Options struct {
	// Comma: 字段分隔符（单个字符），默认 ","。
	Comma string `json:"comma"`
	// TopicColumn/QueryColumn: 表头列名（大小写不敏感），默认 Topic / Query。
	TopicColumn string `json:"topic_column"`
	QueryColumn string `json:"query_column"`
	// LazyQuotes: 容忍不规范引号。
	LazyQuotes bool `json:"lazy_quotes"`
}

// Splitter 实现 CSV 拆分。
type Splitter struct {
	comma      rune
	topic      string
	query      string
	lazyQuotes bool
}

// New 创建 CSV Splitter。
func New(opts *Options) (*Splitter, error) {
	s := &Splitter{comma: ',', topic: "topic", query: "query"}
	if opts == nil {
		return s, nil
	}
	if opts.Comma != "" {
		r, n := utf8.DecodeRuneInString(opts.Comma)
		if n != len(opts.Comma) || r == '"' || r == '\r' || r == '\n' {
			return nil, fmt.Errorf("%w: comma must be a single character, got %q", contract.ErrInvalidInput, opts.Comma)
		}
		s.comma = r
	}
	if v := strings.TrimSpace(opts.TopicColumn); v != "" {
		s.topic = strings.ToLower(v)
	}
	if v := strings.TrimSpace(opts.QueryColumn); v != "" {
		s.query = strings.ToLower(v)
	}
	s.lazyQuotes = opts.LazyQuotes
	return s, nil
}

// Split 解析单个 CSV 文件。
// 约束：
//  1. 首行为表头，必须包含 Query 列；Topic 列可缺省（记为空串）；
//  2. 每个数据行产出一条 Record，Index 自 0 递增，空白行跳过；
//  3. Query/Topic 仅去除首尾空白；空 Query 原样保留，由编排层记为失败；
//  4. 其余列写入 Meta（键为原表头）。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) ([]contract.Record, error) {
	cr := stdcsv.NewReader(r)
	cr.Comma = s.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = s.lazyQuotes
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", contract.ErrInvalidInput, fileID, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	ti, qi := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case s.topic:
			if ti < 0 {
				ti = i
			}
		case s.query:
			if qi < 0 {
				qi = i
			}
		}
	}
	if qi < 0 {
		return nil, fmt.Errorf("%w: %s: missing %q column", contract.ErrInvalidInput, fileID, s.query)
	}

	var recs []contract.Record
	var idx contract.Index
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contract.ErrInvalidInput, fileID, err)
		}
		rec := contract.Record{Index: idx, FileID: fileID, Query: field(row, qi)}
		if ti >= 0 {
			rec.Topic = field(row, ti)
		}
		for i, h := range header {
			if i == ti || i == qi || i >= len(row) {
				continue
			}
			if rec.Meta == nil {
				rec.Meta = contract.Meta{}
			}
			rec.Meta[strings.TrimSpace(h)] = row[i]
		}
		recs = append(recs, rec)
		idx++
	}
	return recs, nil
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
