package jsonlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typogen/pkg/contract"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		lines   []string
		dropped int
		invalid bool
	}{
		{name: "array", text: `["kat", " catt ", "", 3, "a\nb"]`, lines: []string{"kat", "catt"}, dropped: 3},
		{name: "fenced", text: "```json\n[\"kat\"]\n```", lines: []string{"kat"}},
		{name: "object", text: `{"variants":["kat"]}`, lines: []string{"kat"}},
		{name: "dspy field", text: `{"misspelled_queries":["kat"]}`, lines: []string{"kat"}},
		{name: "prose", text: "Sure! kat, catt", invalid: true},
		{name: "no field", text: `{"other":["kat"]}`, invalid: true},
		{name: "all bad", text: `[1, ""]`, dropped: 2, invalid: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := New(nil).Decode(context.Background(), contract.Request{}, contract.Raw{Text: c.text})
			if c.invalid {
				require.ErrorIs(t, err, contract.ErrResponseInvalid)
				assert.Equal(t, c.dropped, got.Dropped)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.lines, got.Lines)
			assert.Equal(t, c.dropped, got.Dropped)
		})
	}
}
