package csvrows

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typogen/pkg/contract"
)

func read(t *testing.T, r io.Reader, err error) string {
	t.Helper()
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func result(status contract.Status, vs ...contract.Variant) contract.Result {
	rec := contract.Record{Topic: "Travel", Query: "flights, JFK"}
	return contract.Result{
		Request: contract.Request{Record: rec, N: 2},
		Batch:   contract.VariantBatch{Query: rec.Query, Want: 2, Variants: vs},
		Status:  status,
	}
}

func TestAssembleRows(t *testing.T) {
	a := New(nil)
	ctx := context.Background()
	head, err := a.Begin(ctx)
	assert.Equal(t, "Topic,Original_Query,Misspelled_Query\n", read(t, head, err))

	r, err := a.Assemble(ctx, result(contract.StatusOK,
		contract.Variant{Text: "flihgts, JFK", Types: []contract.ErrorType{contract.Transposition}},
		contract.Variant{Text: "fligts, JFK", Types: []contract.ErrorType{contract.Omission}},
	))
	assert.Equal(t, "Travel,\"flights, JFK\",\"flihgts, JFK\"\nTravel,\"flights, JFK\",\"fligts, JFK\"\n", read(t, r, err))
}

func TestAssembleWithTypes(t *testing.T) {
	a := New(&Options{WithTypes: true})
	ctx := context.Background()
	head, err := a.Begin(ctx)
	assert.Equal(t, "Topic,Original_Query,Misspelled_Query,Error_Type\n", read(t, head, err))
	r, err := a.Assemble(ctx, result(contract.StatusPartial,
		contract.Variant{Text: "x", Types: []contract.ErrorType{contract.Phonetic, contract.Omission}},
	))
	assert.Equal(t, "Travel,\"flights, JFK\",x,combined\n", read(t, r, err))
}

func TestAssembleFailedIsEmpty(t *testing.T) {
	res := result(contract.StatusFailed, contract.Variant{Text: "x"})
	res.Err = errors.New("boom")
	r, err := New(nil).Assemble(context.Background(), res)
	assert.Empty(t, read(t, r, err))

	head, err := New(&Options{NoHeader: true}).Begin(context.Background())
	assert.Empty(t, read(t, head, err))
}

func TestAssembleMismatch(t *testing.T) {
	res := result(contract.StatusOK, contract.Variant{Text: "x"})
	res.Batch.Query = "other"
	_, err := New(nil).Assemble(context.Background(), res)
	assert.ErrorIs(t, err, contract.ErrInvariantViolation)
}
