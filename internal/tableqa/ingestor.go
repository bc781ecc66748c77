// Package tableqa 从 PDF 报表抽取表格上下文，并逐题询问后端模型。
package tableqa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"typogen/pkg/contract"
)

// Block: 版面解析块（nlm-ingestor 的 return_dict.result.blocks[]）。
type Block struct {
	Tag       string     `json:"tag"` // header | para | list_item | table
	Level     int        `json:"level"`
	Sentences []string   `json:"sentences"`
	TableRows []TableRow `json:"table_rows"`
}

// TableRow: 表格行。Type 为 table_header | table_data_row | full_row。
type TableRow struct {
	Type      string `json:"type"`
	Cells     []Cell `json:"cells"`
	CellValue any    `json:"cell_value"`
}

// Cell: 单元格；数值单元格原样保留为 JSON 数字。
type Cell struct {
	CellValue any `json:"cell_value"`
}

type parseResp struct {
	Status     int `json:"status"`
	ReturnDict struct {
		Result struct {
			Blocks []Block `json:"blocks"`
		} `json:"result"`
	} `json:"return_dict"`
}

// Ingestor: nlm-ingestor 版面解析服务客户端。
type Ingestor struct {
	url string
	do  func(*http.Request) (*http.Response, error)
}

// NewIngestor 构造客户端；baseURL 形如 http://localhost:5010。
func NewIngestor(baseURL string, timeout time.Duration) *Ingestor {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return &Ingestor{
		url: strings.TrimRight(baseURL, "/") + "/api/parseDocument?renderFormat=all",
		do:  hc.Do,
	}
}

// Parse 以 multipart 字段 file 上传 PDF 并返回解析块。
func (in *Ingestor) Parse(ctx context.Context, name string, pdf []byte) ([]Block, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(pdf); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.url, &body)
	if err != nil {
		return nil, fmt.Errorf("ingestor: %v: %w", err, contract.ErrInvalidInput)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := in.do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("ingestor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ingestor: status %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}
	var pr parseResp
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("ingestor decode: %v: %w", err, contract.ErrResponseInvalid)
	}
	if pr.Status != 0 && pr.Status/100 != 2 {
		return nil, fmt.Errorf("ingestor: result status %d: %w", pr.Status, contract.ErrResponseInvalid)
	}
	return pr.ReturnDict.Result.Blocks, nil
}
