package diag

import (
	"fmt"
	"sync/atomic"
)

// Stats: 运行级计数（并发安全）。用于终端汇总与日志 finish 事件。
// - queries: 尝试处理的 query 数
// - ok/partial/failed: 按结论分类
// - rows: 写出的变体行数
// - dropped: 被过滤的候选数
// - retries: 后端重试次数
type Stats struct {
	queries atomic.Int64
	ok      atomic.Int64
	partial atomic.Int64
	failed  atomic.Int64
	rows    atomic.Int64
	dropped atomic.Int64
	retries atomic.Int64
}

// Snapshot: Stats 的只读快照。
type Snapshot struct {
	Queries int64 `json:"queries"`
	OK      int64 `json:"ok"`
	Partial int64 `json:"partial"`
	Failed  int64 `json:"failed"`
	Rows    int64 `json:"rows"`
	Dropped int64 `json:"dropped"`
	Retries int64 `json:"retries"`
}

// Outcome 记录一条 query 的结论。status ∈ ok|partial|failed。
func (s *Stats) Outcome(status string, rows, dropped int) {
	if s == nil {
		return
	}
	s.queries.Add(1)
	switch status {
	case "ok":
		s.ok.Add(1)
	case "partial":
		s.partial.Add(1)
	default:
		s.failed.Add(1)
	}
	s.rows.Add(int64(rows))
	s.dropped.Add(int64(dropped))
}

// Retry 累加一次重试。
func (s *Stats) Retry() {
	if s != nil {
		s.retries.Add(1)
	}
}

// Snapshot 读取当前计数。
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		Queries: s.queries.Load(),
		OK:      s.ok.Load(),
		Partial: s.partial.Load(),
		Failed:  s.failed.Load(),
		Rows:    s.rows.Load(),
		Dropped: s.dropped.Load(),
		Retries: s.retries.Load(),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("queries %d | ok %d | partial %d | failed %d | rows %d", s.Queries, s.OK, s.Partial, s.Failed, s.Rows)
}

// KV 转为日志键值。
func (s Snapshot) KV() map[string]string {
	return map[string]string{
		"queries": fmt.Sprint(s.Queries),
		"ok":      fmt.Sprint(s.OK),
		"partial": fmt.Sprint(s.Partial),
		"failed":  fmt.Sprint(s.Failed),
		"rows":    fmt.Sprint(s.Rows),
		"dropped": fmt.Sprint(s.Dropped),
		"retries": fmt.Sprint(s.Retries),
	}
}
