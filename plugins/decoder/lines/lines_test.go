package lines

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typogen/pkg/contract"
)

func decode(t *testing.T, q, text string) (contract.Candidates, error) {
	t.Helper()
	return New(nil).Decode(context.Background(), contract.Request{Record: contract.Record{Query: q}, N: 5}, contract.Raw{Text: text})
}

func TestDecodeGrammar(t *testing.T) {
	text := "Here are 5 variants:\n" +
		"```\n" +
		"1. mashine learning\n" +
		"2) machin learning\n" +
		"- \"machine lerning\"\n" +
		"* 'mahcine learning'\n" +
		"\n" +
		"machinee learning\n" +
		"```\n" +
		"I hope these variants help you test your search engine thoroughly today\n"
	got, err := decode(t, "machine learning", text)
	require.NoError(t, err)
	assert.Equal(t, []string{"mashine learning", "machin learning", "machine lerning", "mahcine learning", "machinee learning"}, got.Lines)
	assert.Equal(t, 4, got.Dropped)

	// 序号后无空格
	got, err = decode(t, "machine learning", "1.mashine learning\n2)machin learning\n3.  machine lerning")
	require.NoError(t, err)
	assert.Equal(t, []string{"mashine learning", "machin learning", "machine lerning"}, got.Lines)
	assert.Zero(t, got.Dropped)

	// 列表符号后仍须有空白："-x" 原样保留
	got, err = decode(t, "x-ray", "-xray")
	require.NoError(t, err)
	assert.Equal(t, []string{"-xray"}, got.Lines)
}

func TestDecodeWordCount(t *testing.T) {
	got, err := decode(t, "cheap flights paris", "Sure! Here are some variants you might like.\ncheap flihgts paris\ncheapflights paris\ncheap flights to paris")
	require.NoError(t, err)
	assert.Equal(t, []string{"cheap flihgts paris", "cheapflights paris", "cheap flights to paris"}, got.Lines)
	assert.Equal(t, 1, got.Dropped)

	_, err = decode(t, "hotels", "Sure! Here are some variants you might like.")
	assert.ErrorIs(t, err, contract.ErrResponseInvalid)
}

func TestDecodeTooLong(t *testing.T) {
	got, err := decode(t, "cat", "kat\ncatcatcatcatcatcatcatcatcatcat\r\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"kat"}, got.Lines)
	assert.Equal(t, 1, got.Dropped)
}

func TestDecodeNothingParses(t *testing.T) {
	got, err := decode(t, "cat", "```\n```\n")
	assert.ErrorIs(t, err, contract.ErrResponseInvalid)
	assert.Equal(t, 2, got.Dropped)

	_, err = decode(t, "cat", "")
	assert.ErrorIs(t, err, contract.ErrResponseInvalid)
}

func TestDecodeMaxLineOption(t *testing.T) {
	d := New(&Options{MaxLineBytes: 3})
	got, err := d.Decode(context.Background(), contract.Request{Record: contract.Record{Query: "cat"}}, contract.Raw{Text: "kat\ncatt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kat"}, got.Lines)
}
