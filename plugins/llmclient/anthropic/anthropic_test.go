package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typogen/pkg/contract"
)

const okBody = `{"id":"msg_1","type":"message","role":"assistant","model":"m",
"content":[{"type":"text","text":"kat\ncatt"}],"stop_reason":"end_turn",
"usage":{"input_tokens":3,"output_tokens":4}}`

func TestInvoke(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, err := New(&Options{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	p := contract.ChatPrompt{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "Query: cat"},
		{Role: "json_schema", Content: `{"type":"array"}`},
	}
	raw, err := c.Invoke(context.Background(), contract.Request{}, p)
	require.NoError(t, err)
	assert.Equal(t, "kat\ncatt", raw.Text)
	assert.Equal(t, "m", got["model"])
	assert.EqualValues(t, 1024, got["max_tokens"])
	assert.Len(t, got["messages"], 1)
	assert.NotNil(t, got["system"])
}

func TestInvokeStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, contract.ErrRateLimited},
		{http.StatusBadRequest, contract.ErrInvalidInput},
	}
	for _, tc := range cases {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"x","message":"nope"}}`))
		}))
		c, _ := New(&Options{BaseURL: srv.URL, APIKey: "k"})
		_, err := c.Invoke(context.Background(), contract.Request{}, contract.TextPrompt("cat"))
		assert.ErrorIs(t, err, tc.want)
		assert.Equal(t, 1, calls, "sdk retries disabled")
		srv.Close()
	}
}

func TestNewMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(nil)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}
