package diag

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化日志器：zap JSON 编码，默认写入 logs/ 下的轮转文件。
// 字段约定：corr_id/comp/stage(start|finish|error)/code/dur_ms/count/file_id/query_id/kv。
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

// NewLogger 通过配置的 level 初始化，日志写入 logs/typogen.log，10MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerTo(corrID, level, NewRotatingFile("logs", 10*1024*1024))
}

// NewLoggerTo 将日志写到指定 sink；sink 为 nil 时写 stderr。
func NewLoggerTo(corrID, level string, sink zapcore.WriteSyncer) *Logger {
	if sink == nil {
		sink = zapcore.Lock(os.Stderr)
	}
	lvl := zap.NewAtomicLevelAt(parseLevel(level))
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, lvl)
	z := zap.New(core).With(zap.String("corr_id", corrID))
	return &Logger{z: z, level: lvl}
}

// Nop 返回丢弃一切的日志器（测试/库调用）。
func Nop() *Logger { return &Logger{z: zap.NewNop(), level: zap.NewAtomicLevel()} }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLevel 运行期调整级别。
func (l *Logger) SetLevel(level string) { l.level.SetLevel(parseLevel(level)) }

// Enabled 报告某级别是否输出。
func (l *Logger) Enabled(level string) bool { return l.level.Enabled(parseLevel(level)) }

// Sync 刷新缓冲。
func (l *Logger) Sync() error { return l.z.Sync() }

// Zap 暴露底层 zap.Logger（给需要原生接口的组件）。
func (l *Logger) Zap() *zap.Logger { return l.z }

// Event 为标准事件结构。
type Event struct {
	Comp    string
	Stage   string // start|finish|error
	Code    string
	DurMS   int64
	Count   int64
	FileID  string
	QueryID string
	Msg     string
	KV      map[string]string
}

func (ev Event) fields() []zap.Field {
	fs := make([]zap.Field, 0, 8)
	fs = append(fs, zap.String("comp", ev.Comp), zap.String("stage", ev.Stage))
	if ev.Code != "" {
		fs = append(fs, zap.String("code", ev.Code))
	}
	if ev.DurMS != 0 {
		fs = append(fs, zap.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count != 0 {
		fs = append(fs, zap.Int64("count", ev.Count))
	}
	if ev.FileID != "" {
		fs = append(fs, zap.String("file_id", ev.FileID))
	}
	if ev.QueryID != "" {
		fs = append(fs, zap.String("query_id", ev.QueryID))
	}
	if len(ev.KV) > 0 {
		fs = append(fs, zap.Any("kv", ev.KV))
	}
	return fs
}

func (l *Logger) log(lv zapcore.Level, ev Event) {
	if l == nil || l.z == nil {
		return
	}
	if ce := l.z.Check(lv, ev.Msg); ce != nil {
		ce.Write(ev.fields()...)
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id/query_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID, queryID string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, QueryID: queryID, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, queryID: queryID, t0: time.Now()}
}

// StartWithKV 记录带 file_id/query_id 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID, queryID string, kv map[string]string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, QueryID: queryID, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, queryID: queryID, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWith 支持 file_id/query_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID, queryID string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, queryID, nil)
}

// ErrorWithKV 支持附带键值对（例如 HTTP 状态码、上游错误片段）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID, queryID string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(zapcore.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID, QueryID: queryID, KV: kv})
}

// WarnWithKV 记录非致命的异常（如 PartialResult）。
func (l *Logger) WarnWithKV(comp, code, msg, fileID, queryID string, kv map[string]string) {
	l.log(zapcore.WarnLevel, Event{Comp: comp, Stage: "finish", Code: code, Msg: msg, FileID: fileID, QueryID: queryID, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID, queryID string, kv map[string]string) {
	l.log(zapcore.DebugLevel, Event{Comp: comp, Stage: "start", FileID: fileID, QueryID: queryID, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l       *Logger
	comp    string
	fileID  string
	queryID string
	t0      time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(zapcore.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, FileID: t.fileID, QueryID: t.queryID, Msg: msg})
}

// Since 返回计时起点（供 Error 的 durSince 使用）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
