package contract

// FileID: 逻辑输入文件 ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Index: 单文件内稳定递增的行索引（0..n-1，不含表头）。
type Index int64

// Meta: 可选的轻量元信息；核心流程不读取其键值。
type Meta map[string]string

// Record: 原子输入行（不可跨文件）。
// 约束：
// - FileID 一致；
// - Index 自 0 严格递增；
// - Query 原样保留（仅去除 CSV 层面的首尾空白），不做业务清洗。
type Record struct {
	Index  Index
	FileID FileID
	Topic  string
	Query  string
	Meta   Meta // 可为 nil
}

// ErrorType: 拼写错误类别。
type ErrorType string

const (
	Phonetic      ErrorType = "phonetic"
	Omission      ErrorType = "omission"
	Transposition ErrorType = "transposition"
	Repetition    ErrorType = "repetition"
	Combined      ErrorType = "combined"
	// Unknown: 后端返回、无法归类的变体。
	Unknown ErrorType = "unknown"
)

// RequiredTypes: 批内（n>=4 时）必须覆盖的四种基础类别，按生成顺序排列。
var RequiredTypes = []ErrorType{Phonetic, Omission, Transposition, Repetition}

// Variant: 一个拼写变体及其施加的错误类别。
type Variant struct {
	Text  string
	Types []ErrorType
}

// VariantBatch: 单个 Query 的变体批。
// 约束：
//  1. len(Variants) <= Want；
//  2. 变体两两不同，且都不等于 Query；
//  3. Protected 中出现在 Query 里的词，在每个变体中逐字节保留。
type VariantBatch struct {
	Query     string
	Protected []string
	Want      int
	Variants  []Variant
	// Dropped: 被过滤（无法解析/违反不变量/重复）的候选数。
	Dropped int
}

// Short 报告是否未满额。
func (b VariantBatch) Short() bool { return len(b.Variants) < b.Want }

// Request: 以 Query 为单位的生成请求（流水线内一条任务）。
type Request struct {
	// ID: 运行内唯一的任务 ID（日志/报告关联用）。
	ID        string
	Record    Record
	Protected []string
	N         int
}

// Status: 单条 Query 的处理结论。
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result: 单条 Query 的显式结果值（成功带批 / 失败带原因）。
// 失败时 Batch.Variants 为空，Err 非空。
type Result struct {
	Request Request
	Batch   VariantBatch
	Status  Status
	Err     error
}
