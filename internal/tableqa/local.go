package tableqa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes: 远程 PDF 下载上限。
const maxPDFBytes = 64 << 20

// Fetch 读取 PDF：http(s) 地址经 GET 下载，其余视为本地路径；返回内容与文件名。
func Fetch(ctx context.Context, src string, hc *http.Client) ([]byte, string, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, "", fmt.Errorf("tableqa: %w", err)
		}
		return b, path.Base(strings.ReplaceAll(src, "\\", "/")), nil
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("tableqa: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("tableqa: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, "", fmt.Errorf("tableqa: fetch %s: status %d", src, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("tableqa: fetch: %w", err)
	}
	if len(b) > maxPDFBytes {
		return nil, "", fmt.Errorf("tableqa: fetch %s: larger than %d bytes", src, maxPDFBytes)
	}
	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "document.pdf"
	}
	return b, name, nil
}

// PlainText 本地抽取 PDF 纯文本（无版面结构）。
func PlainText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("tableqa: pdf reader: %w", err)
	}
	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("tableqa: pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("tableqa: pdf text: %w", err)
	}
	return buf.String(), nil
}
