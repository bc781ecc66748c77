package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typogen/internal/diag"
	"typogen/internal/pipeline"
)

// sandbox 切换到临时目录并屏蔽真实日志输出。
func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	old := newLogger
	newLogger = func(string, string) *diag.Logger { return diag.Nop() }
	t.Cleanup(func() { newLogger = old })
	return dir
}

func exec(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := execute(context.Background(), append([]string{"--env-file", "none.env", "--status=false"}, args...), &out, &errb)
	return code, out.String(), errb.String()
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestInitConfig(t *testing.T) {
	dir := sandbox(t)
	target := filepath.Join(dir, "conf")

	code, out, _ := exec(t, "init-config", target)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "typogen.yaml")
	for _, name := range []string{"typogen.yaml", ".env"} {
		_, err := os.Stat(filepath.Join(target, name))
		assert.NoError(t, err, name)
	}

	// 已存在时跳过，不覆盖
	writeFile(t, filepath.Join(target, "typogen.yaml"), "mode: llm\n")
	code, _, errOut := exec(t, "init-config", target)
	require.Equal(t, exitOK, code)
	assert.Contains(t, errOut, "已存在")
	b, err := os.ReadFile(filepath.Join(target, "typogen.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mode: llm\n", string(b))
}

func TestGenRules(t *testing.T) {
	sandbox(t)
	code, out, errOut := exec(t, "gen", "-n", "3", "--protect", "Nike", "Nike running shoes")
	require.Equal(t, exitOK, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		text, typ, ok := strings.Cut(l, "\t")
		require.True(t, ok, l)
		assert.True(t, strings.HasPrefix(text, "Nike "), text)
		assert.NotEqual(t, "Nike running shoes", text)
		assert.NotEmpty(t, typ)
	}
}

func TestGenMockBackend(t *testing.T) {
	sandbox(t)
	writeFile(t, "typogen.yaml", `
mode: llm
llm: m
provider:
  m:
    client: mock
    options:
      response_mode: rules
`)
	code, out, errOut := exec(t, "gen", "-n", "2", "cheap flights")
	require.Equal(t, exitOK, code, errOut)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestRunRules(t *testing.T) {
	dir := sandbox(t)
	writeFile(t, "queries.csv", "Topic,Query\nTravel,cheap flights to paris\nShopping,running shoes\n")

	code, _, errOut := exec(t, "run", "queries.csv", "-o", "out", "-n", "2")
	require.Equal(t, exitOK, code, errOut)

	b, err := os.ReadFile(filepath.Join(dir, "out", "queries.misspelled.csv"))
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "Topic,Original_Query,Misspelled_Query", rows[0])
	assert.Len(t, rows, 5)
	assert.True(t, strings.HasPrefix(rows[1], "Travel,cheap flights to paris,"), rows[1])

	rep, err := os.ReadFile(filepath.Join(dir, "out", "queries.misspelled.csv.report.jsonl"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(rep)), "\n"), 2)
}

func TestRunNoReport(t *testing.T) {
	dir := sandbox(t)
	writeFile(t, "queries.csv", "Topic,Query\nTravel,hotel deals\n")
	code, _, errOut := exec(t, "run", "queries.csv", "-o", "out", "--report=false")
	require.Equal(t, exitOK, code, errOut)
	_, err := os.Stat(filepath.Join(dir, "out", "queries.misspelled.csv.report.jsonl"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunConfigErrors(t *testing.T) {
	sandbox(t)
	writeFile(t, "queries.csv", "Topic,Query\nTravel,hotel deals\n")
	cases := map[string][]string{
		"bad mode":     {"run", "queries.csv", "-o", "out", "--mode", "magic"},
		"no provider":  {"run", "queries.csv", "-o", "out", "--mode", "llm", "--llm", "ghost"},
		"no output":    {"run", "queries.csv"},
		"unknown flag": {"run", "--nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			code, _, errOut := exec(t, args...)
			assert.Equal(t, exitConfig, code)
			assert.Contains(t, errOut, "错误")
		})
	}
}

func TestRunExitCodes(t *testing.T) {
	sandbox(t)
	writeFile(t, "queries.csv", "Topic,Query\nTravel,hotel deals\n")
	old := pipelineRun
	t.Cleanup(func() { pipelineRun = old })

	pipelineRun = func(context.Context, pipeline.Components, pipeline.Settings, *diag.Logger) error {
		return errors.New("disk full")
	}
	code, _, errOut := exec(t, "run", "queries.csv", "-o", "out")
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, errOut, "disk full")

	pipelineRun = func(context.Context, pipeline.Components, pipeline.Settings, *diag.Logger) error {
		return context.Canceled
	}
	code, _, _ = exec(t, "run", "queries.csv", "-o", "out")
	assert.Equal(t, exitCanceled, code)
}

func TestTableQA(t *testing.T) {
	sandbox(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"return_dict": map[string]any{"result": map[string]any{"blocks": []any{
				map[string]any{"tag": "table", "table_rows": []any{
					map[string]any{"type": "table_header", "cells": []any{map[string]any{"cell_value": "Segment"}, map[string]any{"cell_value": "Q1 2024"}}},
					map[string]any{"type": "table_data_row", "cells": []any{map[string]any{"cell_value": "Google Cloud"}, map[string]any{"cell_value": 9574}}},
				}},
			}}},
		})
	}))
	defer srv.Close()

	writeFile(t, "typogen.yaml", `
llm: m
provider:
  m:
    client: mock
    options:
      response_mode: echo
`)
	writeFile(t, "report.pdf", "%PDF-1.4 stub")
	code, out, errOut := exec(t, "tableqa", "--pdf", "report.pdf", "--ingestor", srv.URL, "-q", "What were Cloud revenues?")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Q1: What were Cloud revenues?")
	assert.Contains(t, out, "<td>Google Cloud</td>")
	assert.Contains(t, out, "9574")
}

func TestTableQANeedsProvider(t *testing.T) {
	sandbox(t)
	writeFile(t, "report.pdf", "%PDF-1.4 stub")
	code, _, _ := exec(t, "tableqa", "--pdf", "report.pdf")
	assert.Equal(t, exitConfig, code)
}

func TestTermsNeedsRedis(t *testing.T) {
	sandbox(t)
	code, _, errOut := exec(t, "terms", "ls")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "错误")
}
