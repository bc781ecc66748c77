package rate

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
)

// keyEnvDefaults: 各客户端未显式配置 api_key/api_key_env 时读取的默认环境变量。
var keyEnvDefaults = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GOOGLE_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// DeriveKeyFromProviderOptions 从客户端标识与其原样 Options JSON 中取出 API Key，
// 返回 client:sha256(key) 分组键。同一凭据的多个 provider 共享额度。
// 无需密钥的客户端（mock/flaky/ollama）使用 client:base_url 或 client 本身。
func DeriveKeyFromProviderOptions(client string, raw json.RawMessage) (LimitKey, error) {
	var obj map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", fmt.Errorf("rate: options for %s: %w", client, err)
		}
	}
	pick := func(key string) string {
		if s, ok := obj[key].(string); ok {
			return s
		}
		return ""
	}

	switch client {
	case "mock", "flaky":
		return LimitKey(client), nil
	case "ollama":
		if u := pick("base_url"); u != "" {
			return LimitKey(client + ":" + u), nil
		}
		return LimitKey(client), nil
	}

	key := pick("api_key")
	if key == "" {
		env := pick("api_key_env")
		if env == "" {
			env = keyEnvDefaults[client]
		}
		if env != "" {
			key = os.Getenv(env)
		}
	}
	if key == "" {
		return "", fmt.Errorf("rate: missing api key for client %s", client)
	}
	sum := sha256.Sum256([]byte(key))
	return LimitKey(fmt.Sprintf("%s:%x", client, sum[:])), nil
}
