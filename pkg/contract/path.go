package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：正斜杠分隔；清理 . / .. 与重复分隔符；不做隐式绝对化。
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// ArtifactFor 将输入 FileID 映射为输出工件 ID：
// "dir/queries.csv" -> "queries.misspelled.csv"；"stdin" -> "stdin.misspelled.csv"。
// 输出仅取基名，目录由 Writer 的 output_dir 决定。
func ArtifactFor(id FileID) ArtifactID {
	base := path.Base(string(id))
	if base == "." || base == "/" || base == "" {
		base = "stdin"
	}
	if ext := path.Ext(base); strings.EqualFold(ext, ".csv") {
		base = strings.TrimSuffix(base, ext)
	}
	return ArtifactID(base + ".misspelled.csv")
}

// ReportFor 返回工件对应的 JSONL 报告 ID。
func ReportFor(id ArtifactID) ArtifactID { return id + ".report.jsonl" }
