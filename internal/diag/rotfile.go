package diag

import (
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logFileName: 当前日志文件名；轮转文件由 lumberjack 追加时间戳。
const logFileName = "typogen.log"

// NewRotatingFile 返回写入 dir/typogen.log 的轮转 sink。
// maxBytes 向上取整到 MiB（lumberjack 的粒度），<=0 时为 10MiB。
func NewRotatingFile(dir string, maxBytes int64) zapcore.WriteSyncer {
	return zapcore.AddSync(newLumberjack(dir, maxBytes))
}

func newLumberjack(dir string, maxBytes int64) *lumberjack.Logger {
	const mib = 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 10 * mib
	}
	mb := int((maxBytes + mib - 1) / mib)
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    mb,
		MaxBackups: 5,
		LocalTime:  false,
	}
}
