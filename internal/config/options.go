package config

import (
	"encoding/json"
	"fmt"
)

// RawOptions: 组件/客户端选项子树。YAML/JSON 均解码为通用映射，交给工厂前转为 JSON。
type RawOptions map[string]any

// JSON 将选项编码为 JSON；空选项返回 nil（工厂保持零值默认）。
func (o RawOptions) JSON() (json.RawMessage, error) {
	if len(o) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(normalize(o))
	if err != nil {
		return nil, fmt.Errorf("config: encode options: %w", err)
	}
	return b, nil
}

// ParseRawOptions 从 JSON 文本构造选项（ENV 中的 *_OPTIONS_JSON）。
func ParseRawOptions(s string) (RawOptions, error) {
	var o RawOptions
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return nil, fmt.Errorf("config: options json: %w", err)
	}
	return o, nil
}

func (o RawOptions) clone() RawOptions {
	if len(o) == 0 {
		return nil
	}
	out := make(RawOptions, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// normalize 把 map[any]any（部分 YAML 解码器的产物）转换为可 JSON 编码的 map[string]any。
func normalize(v any) any {
	switch t := v.(type) {
	case RawOptions:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = normalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	default:
		return v
	}
}
