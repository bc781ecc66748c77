package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"typogen/pkg/contract"
	acsv "typogen/plugins/assembler/csvrows"
	djson "typogen/plugins/decoder/jsonlist"
	dlines "typogen/plugins/decoder/lines"
	anth "typogen/plugins/llmclient/anthropic"
	flaky "typogen/plugins/llmclient/flaky"
	gmi "typogen/plugins/llmclient/gemini"
	mock "typogen/plugins/llmclient/mock"
	oll "typogen/plugins/llmclient/ollama"
	oai "typogen/plugins/llmclient/openai"
	pms "typogen/plugins/prompt/misspell"
	rfs "typogen/plugins/reader/filesystem"
	scsv "typogen/plugins/splitter/csv"
	wfs "typogen/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("options: %v: %w", err, contract.ErrInvalidInput)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewSplitter 工厂签名：接收原样 JSON Options。
type NewSplitter func(raw json.RawMessage) (contract.Splitter, error)

// NewPromptBuilder 工厂签名：接收原样 JSON Options。
type NewPromptBuilder func(raw json.RawMessage) (contract.PromptBuilder, error)

// NewLLMClient 工厂签名：接收原样 JSON Options。
type NewLLMClient func(raw json.RawMessage) (contract.LLMClient, error)

// NewDecoder 工厂签名：接收原样 JSON Options。
type NewDecoder func(raw json.RawMessage) (contract.Decoder, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage) (contract.Assembler, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Splitter 工厂注册表。
var Splitter = map[string]NewSplitter{
	// csv: 带表头的 CSV 拆分器（Topic 可选，Query 必需）
	"csv": func(raw json.RawMessage) (contract.Splitter, error) {
		var opts scsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return scsv.New(&opts)
	},
}

// PromptBuilder 工厂注册表。
var PromptBuilder = map[string]NewPromptBuilder{
	// misspell: 单 Query 拼写变体 PromptBuilder（Chat）
	"misspell": func(raw json.RawMessage) (contract.PromptBuilder, error) {
		var opts pms.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pms.New(&opts)
	},
}

// LLMClient 工厂注册表。
var LLMClient = map[string]NewLLMClient{
	"openai": func(raw json.RawMessage) (contract.LLMClient, error) {
		var opts oai.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return oai.New(&opts)
	},
	"ollama": func(raw json.RawMessage) (contract.LLMClient, error) {
		var opts oll.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return oll.New(&opts), nil
	},
	"gemini": func(raw json.RawMessage) (contract.LLMClient, error) {
		var opts gmi.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return gmi.New(context.Background(), &opts)
	},
	"anthropic": func(raw json.RawMessage) (contract.LLMClient, error) {
		var opts anth.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return anth.New(&opts)
	},
	"mock":  func(raw json.RawMessage) (contract.LLMClient, error) { return mock.New(raw) },
	"flaky": func(raw json.RawMessage) (contract.LLMClient, error) { return flaky.New(raw) },
}

// Decoder 工厂注册表。
var Decoder = map[string]NewDecoder{
	// lines: 逐行文本（容忍编号/项目符号/引号）
	"lines": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts dlines.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dlines.New(&opts), nil
	},
	// jsonlist: JSON 字符串数组（或 {"variants":[...]}）
	"jsonlist": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts djson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return djson.New(&opts), nil
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// csvrows: Topic,Original_Query,Misspelled_Query 行
	"csvrows": func(raw json.RawMessage) (contract.Assembler, error) {
		var opts acsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return acsv.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}
