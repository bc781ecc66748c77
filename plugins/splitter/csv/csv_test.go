package csv

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typogen/pkg/contract"
)

func split(t *testing.T, s *Splitter, in string) ([]contract.Record, error) {
	t.Helper()
	return s.Split(context.Background(), "q.csv", strings.NewReader(in))
}

func TestSplitBasic(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	in := "\ufefftopic,QUERY,extra\nAI, machine learning ,x\n\nNews,\"NASA, JFK\",y\n"
	recs, err := split(t, s, in)
	require.NoError(t, err)
	want := []contract.Record{
		{Index: 0, FileID: "q.csv", Topic: "AI", Query: "machine learning", Meta: contract.Meta{"extra": "x"}},
		{Index: 1, FileID: "q.csv", Topic: "News", Query: "NASA, JFK", Meta: contract.Meta{"extra": "y"}},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitTopicOptionalAndShortRows(t *testing.T) {
	s, _ := New(nil)
	recs, err := split(t, s, "Query\nfoo\n\"\"\n")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "", recs[0].Topic)
	assert.Equal(t, "", recs[1].Query)
}

func TestSplitMissingQueryColumn(t *testing.T) {
	s, _ := New(nil)
	_, err := split(t, s, "Topic,Text\na,b\n")
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestSplitEmptyFile(t *testing.T) {
	s, _ := New(nil)
	recs, err := split(t, s, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSplitCustomOptions(t *testing.T) {
	s, err := New(&Options{Comma: ";", TopicColumn: "Category", QueryColumn: "Search"})
	require.NoError(t, err)
	recs, err := split(t, s, "Category;Search\nshop;red shoes\n")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "shop", recs[0].Topic)
	assert.Equal(t, "red shoes", recs[0].Query)

	_, err = New(&Options{Comma: ";;"})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestSplitMalformed(t *testing.T) {
	s, _ := New(nil)
	_, err := split(t, s, "Topic,Query\na,\"unterminated\n")
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}
