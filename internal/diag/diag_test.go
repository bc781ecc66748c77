package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"typogen/pkg/contract"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("corr-1", "info", zapcore.AddSync(&buf))
	timer := l.StartWith("pipeline", "query", "q.csv", "q-7")
	timer.Finish("ok", 5)
	l.ErrorWithKV("llm", "timeout", "invoke failed", timer.Since(), "q.csv", "q-7", map[string]string{"attempt": "2"})
	l.DebugStart("llm", "filtered", "", "", nil)
	require.NoError(t, l.Sync())

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3, "debug 应被过滤")
	assert.Equal(t, "corr-1", lines[0]["corr_id"])
	assert.Equal(t, "start", lines[0]["stage"])
	assert.Equal(t, "q-7", lines[0]["query_id"])
	assert.Equal(t, "finish", lines[1]["stage"])
	assert.EqualValues(t, 5, lines[1]["count"])
	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "timeout", lines[2]["code"])
	assert.Equal(t, map[string]any{"attempt": "2"}, lines[2]["kv"])
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("c", "warn", zapcore.AddSync(&buf))
	assert.False(t, l.Enabled("info"))
	l.Start("comp", "dropped").Finish("dropped", 0)
	l.WarnWithKV("pipeline", "partial", "short", "f", "q", nil)
	l.Error("comp", "io", "kept", nil)
	assert.Len(t, decodeLines(t, &buf), 2)

	l.SetLevel("debug")
	assert.True(t, l.Enabled("debug"))
	l.DebugStart("comp", "now visible", "", "", map[string]string{"k": "v"})
	assert.Len(t, decodeLines(t, &buf), 3)
}

func TestLoggerNilSafe(t *testing.T) {
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
	assert.Nil(t, tnil.Since())
	Nop().Error("comp", "x", "y", nil)
	var lnil *Logger
	lnil.Error("comp", "x", "y", nil)
}

func TestRotatingFileWritesUnderDir(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	_, err := w.Write([]byte("{\"msg\":\"x\"}\n"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, logFileName))
	require.NoError(t, err)

	lj := newLumberjack(dir, 1)
	assert.Equal(t, 1, lj.MaxSize)
	lj = newLumberjack(dir, 3*1024*1024+1)
	assert.Equal(t, 4, lj.MaxSize)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{contract.ErrResponseInvalid, CodeProtocol},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("%w: %w", contract.ErrBackendTimeout, context.DeadlineExceeded), CodeTimeout},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{&net.DNSError{Err: "x"}, CodeNetwork},
		{&net.DNSError{Err: "x", IsTimeout: true}, CodeTimeout},
		{contract.ErrBudgetExceeded, CodeBudget},
		{contract.ErrRateLimited, CodeBudget},
		{&contract.PartialError{Want: 5, Got: 2}, CodePartial},
		{contract.ErrInvalidInput, CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}

func TestStats(t *testing.T) {
	var s Stats
	s.Outcome("ok", 5, 0)
	s.Outcome("partial", 3, 2)
	s.Outcome("failed", 0, 0)
	s.Retry()
	snap := s.Snapshot()
	assert.Equal(t, Snapshot{Queries: 3, OK: 1, Partial: 1, Failed: 1, Rows: 8, Dropped: 2, Retries: 1}, snap)
	assert.Equal(t, "queries 3 | ok 1 | partial 1 | failed 1 | rows 8", snap.String())
	assert.Equal(t, "8", snap.KV()["rows"])

	var nilStats *Stats
	nilStats.Outcome("ok", 1, 0)
	nilStats.Retry()
	assert.Zero(t, nilStats.Snapshot())
}

func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	require.False(t, term.isTTY)
	term.RunStart(4, "rules")
	term.FileStart("data/queries.csv", 12)
	term.FileProgress(6, 12, 0)
	term.QueryFailed("cheap\nflights", "protocol")
	term.FileFinish(true, 5100*time.Millisecond)
	term.RunFinish(true, 41300*time.Millisecond, Snapshot{Queries: 12, OK: 11, Failed: 1, Rows: 55})

	out := sb.String()
	assert.NotContains(t, out, "\r")
	assert.Contains(t, out, "[run] 并发=4 | 后端=rules")
	assert.Contains(t, out, "[file] queries.csv | 查询=12")
	assert.Contains(t, out, `[skip] "cheap flights" | protocol`)
	assert.Contains(t, out, "[done] queries.csv | 查询 12 | 用时 5.1s")
	assert.Contains(t, out, "[ok] 全部完成 | 文件 1 | queries 12 | ok 11 | partial 0 | failed 1 | rows 55 | 总用时 41.3s")
}

func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart(2, "mock")
	term.FileStart("/a/b/c/longfilename.csv", 3)

	term.FileProgress(1, 3, 0)
	first := sb.String()
	require.Contains(t, first, "\r[")
	term.FileProgress(2, 3, 1)
	assert.Equal(t, first, sb.String(), "100ms 内应被节流")
	time.Sleep(120 * time.Millisecond)
	term.FileProgress(2, 3, 1)
	assert.Greater(t, len(sb.String()), len(first))

	term.FileFinish(false, 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	require.Positive(t, idx)
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	require.GreaterOrEqual(t, cr, 0)
	assert.Contains(t, seg[cr+1:], " ")
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.isTTY = false
	term.RunStart(1, "x")
	assert.False(t, term.enabled)
	term.FileStart("a", 0)
	term.FileProgress(0, 0, 0)
	term.FileFinish(true, 0)
	term.RunFinish(true, 0, Snapshot{})

	inline := NewTerminal(&flakyWriter{fail: true}, true)
	inline.isTTY = true
	inline.FileStart("f.csv", 2)
	inline.FileProgress(1, 2, 0)
	assert.False(t, inline.enabled)
}

func TestTerminalNilAndCI(t *testing.T) {
	var tn *Terminal
	tn.RunStart(1, "x")
	tn.FileStart("a", 1)
	tn.FileProgress(0, 0, 0)
	tn.FileFinish(true, 0)
	tn.RunFinish(true, 0, Snapshot{})
	tn.QueryFailed("q", "r")

	t.Setenv("CI", "true")
	var sb strings.Builder
	assert.False(t, NewTerminal(&sb, true).isTTY)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "", shortenBase("x", 0))
	assert.Equal(t, "abcdefghi…", shortenBase("/x/y/abcdefghijklmnop.csv", 10))
	assert.Equal(t, "a b c", safe("a\nb\rc"))
	assert.Equal(t, "0ms", formatDur(0))
	assert.Equal(t, "1.5s", formatDur(1500*time.Millisecond))
}
