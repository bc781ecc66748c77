package tableqa

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// RenderHTML 将解析块渲染为 HTML 上下文（标题/段落/列表/表格），文本经转义。
func RenderHTML(blocks []Block) (string, error) {
	var sb strings.Builder
	for _, b := range blocks {
		n := blockNode(b)
		if n == nil {
			continue
		}
		if err := html.Render(&sb, n); err != nil {
			return "", fmt.Errorf("tableqa: render: %w", err)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func blockNode(b Block) *html.Node {
	text := strings.TrimSpace(strings.Join(b.Sentences, " "))
	switch b.Tag {
	case "header":
		lvl := b.Level + 1
		if lvl > 6 {
			lvl = 6
		}
		return elem("h"+strconv.Itoa(lvl), textNode(text))
	case "list_item":
		return elem("ul", elem("li", textNode(text)))
	case "table":
		return tableNode(b.TableRows)
	default:
		if text == "" {
			return nil
		}
		return elem("p", textNode(text))
	}
}

func tableNode(rows []TableRow) *html.Node {
	t := elem("table")
	for _, r := range rows {
		tr := elem("tr")
		switch r.Type {
		case "full_row":
			td := elem("td", textNode(cellText(r.CellValue)))
			td.Attr = []html.Attribute{{Key: "colspan", Val: strconv.Itoa(maxCols(rows))}}
			tr.AppendChild(td)
		default:
			tag := "td"
			if r.Type == "table_header" {
				tag = "th"
			}
			for _, c := range r.Cells {
				tr.AppendChild(elem(tag, textNode(cellText(c.CellValue))))
			}
		}
		t.AppendChild(tr)
	}
	return t
}

func maxCols(rows []TableRow) int {
	n := 1
	for _, r := range rows {
		if len(r.Cells) > n {
			n = len(r.Cells)
		}
	}
	return n
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func elem(tag string, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func textNode(s string) *html.Node { return &html.Node{Type: html.TextNode, Data: s} }
