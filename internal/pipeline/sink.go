package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"typogen/internal/diag"
	"typogen/pkg/contract"
)

// sinks 单文件的输出通道：工件管道 + 可选 JSONL 报告管道，各由一个 Writer 协程消费。
type sinks struct {
	art    *io.PipeWriter
	artErr chan error
	rep    *io.PipeWriter
	repErr chan error
	report *json.Encoder
}

// openSinks 启动 Writer 协程并写出表头。
// Writer 使用脱离取消的 ctx：取消时由编排层决定提交前缀（正常关闭管道）或中止（带错关闭）。
func (r *runner) openSinks(ctx context.Context, fileID contract.FileID) (*sinks, error) {
	wctx := context.WithoutCancel(ctx)
	artID := contract.ArtifactFor(fileID)
	s := &sinks{}
	s.art, s.artErr = r.startWriter(wctx, fileID, artID)
	if r.set.Report {
		s.rep, s.repErr = r.startWriter(wctx, fileID, contract.ReportFor(artID))
		s.report = json.NewEncoder(s.rep)
	}
	head, err := r.comp.Assembler.Begin(ctx)
	if err != nil {
		err = fmt.Errorf("assembler begin: %w", err)
	} else {
		err = s.unit(head)
	}
	if err != nil {
		_ = s.close(err)
		return nil, err
	}
	return s, nil
}

func (r *runner) startWriter(ctx context.Context, fileID contract.FileID, id contract.ArtifactID) (*io.PipeWriter, chan error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		wt := r.log.StartWithKV("writer", "write", string(fileID), "", map[string]string{"artifact": string(id)})
		err := r.comp.Writer.Write(ctx, id, pr)
		if err != nil {
			r.log.ErrorWith("writer", string(diag.Classify(err)), "write failed: "+err.Error(), wt.Since(), string(fileID), "")
		} else {
			wt.Finish("write", 0)
		}
		_ = pr.CloseWithError(err)
		done <- err
	}()
	return pw, done
}

// unit 将一个完整单元写入工件管道。
func (s *sinks) unit(rd io.Reader) error {
	if rd == nil {
		return nil
	}
	if _, err := io.Copy(s.art, rd); err != nil {
		return fmt.Errorf("writer write: %w", err)
	}
	return nil
}

// close 结束管道并等待 Writer 返回。
// cause 为 nil 或取消：正常关闭（提交已写出的前缀）；否则带错关闭（Writer 放弃落盘）。
func (s *sinks) close(cause error) error {
	abort := cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded)
	shut := func(pw *io.PipeWriter) {
		if abort {
			_ = pw.CloseWithError(cause)
		} else {
			_ = pw.Close()
		}
	}
	shut(s.art)
	err := <-s.artErr
	if s.rep != nil {
		shut(s.rep)
		if rerr := <-s.repErr; err == nil {
			err = rerr
		}
	}
	if err != nil {
		if abort {
			return cause
		}
		return fmt.Errorf("writer write: %w", err)
	}
	return nil
}
