package pipeline

import (
	"typogen/internal/misspell"
	"typogen/pkg/contract"
)

// reportRow: JSONL 报告中的一行（每条 Query 一行，按输入顺序）。
type reportRow struct {
	QueryID   string   `json:"query_id"`
	Index     int64    `json:"index"`
	Topic     string   `json:"topic"`
	Query     string   `json:"query"`
	Status    string   `json:"status"`
	Want      int      `json:"want"`
	Got       int      `json:"got"`
	Dropped   int      `json:"dropped"`
	Protected []string `json:"protected,omitempty"`
	Types     []string `json:"types,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

func newReportRow(res contract.Result) reportRow {
	rec := res.Request.Record
	row := reportRow{
		QueryID:   res.Request.ID,
		Index:     int64(rec.Index),
		Topic:     rec.Topic,
		Query:     rec.Query,
		Status:    string(res.Status),
		Want:      res.Request.N,
		Got:       len(res.Batch.Variants),
		Dropped:   res.Batch.Dropped,
		Protected: res.Request.Protected,
	}
	for _, v := range res.Batch.Variants {
		row.Types = append(row.Types, string(misspell.Label(v)))
	}
	if res.Err != nil {
		row.Reason = res.Err.Error()
	}
	return row
}
