package misspell

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typogen/pkg/contract"
)

func texts(vs []contract.Variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Text
	}
	return out
}

func TestGenerateCoversRequiredTypes(t *testing.T) {
	g := New(nil)
	b, err := g.Generate("machine learning applications", nil, 4)
	require.NoError(t, err)

	want := []contract.Variant{
		{Text: "mashine learning applications", Types: []contract.ErrorType{contract.Phonetic}},
		{Text: "machie learning applications", Types: []contract.ErrorType{contract.Omission}},
		{Text: "machnie learning applications", Types: []contract.ErrorType{contract.Transposition}},
		{Text: "machinee learning applications", Types: []contract.ErrorType{contract.Repetition}},
	}
	if diff := cmp.Diff(want, b.Variants); diff != "" {
		t.Fatalf("变体不符 (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, b.Want)
	assert.Equal(t, 0, b.Dropped)
}

func TestGenerateCombinedFillsCount(t *testing.T) {
	b, err := New(nil).Generate("machine learning applications", nil, 5)
	require.NoError(t, err)
	require.Len(t, b.Variants, 5)
	last := b.Variants[4]
	assert.Equal(t, "mashine learnig applications", last.Text)
	assert.Equal(t, contract.Combined, Label(last))
	assert.Equal(t, []contract.ErrorType{contract.Phonetic, contract.Omission}, last.Types)
}

func TestGenerateKeepsAbbreviation(t *testing.T) {
	g := New(nil)
	q := "JFK flight schedule"
	for _, prot := range [][]string{nil, {"JFK"}} {
		for n := 1; n <= 25; n++ {
			b, err := g.Generate(q, prot, n)
			if err != nil {
				require.ErrorIs(t, err, contract.ErrPartialResult)
			}
			for _, v := range b.Variants {
				assert.Equal(t, 1, contract.CountTerm(v.Text, "JFK"), v.Text)
				assert.True(t, strings.HasPrefix(v.Text, "JFK "), v.Text)
				for _, bad := range []string{"JKF", "jfk", "JFKK"} {
					assert.NotContains(t, v.Text, bad)
				}
			}
		}
	}
}

func TestGenerateDistinctAndDifferent(t *testing.T) {
	g := New(nil)
	queries := []string{
		"machine learning applications",
		"cheap flights to NYC",
		"quick  brown\tfox",
		"best pizza near me",
		"US economy",
		"weather tomorrow?",
		"Kubernetes deployment tutorial",
	}
	for _, q := range queries {
		for _, n := range []int{1, 3, 5, 12} {
			t.Run(fmt.Sprintf("%s/%d", q, n), func(t *testing.T) {
				b, err := g.Generate(q, nil, n)
				if err != nil {
					require.ErrorIs(t, err, contract.ErrPartialResult)
				}
				assert.LessOrEqual(t, len(b.Variants), n)
				seen := map[string]bool{}
				for _, v := range b.Variants {
					assert.NotEqual(t, q, v.Text)
					assert.False(t, seen[v.Text], "重复变体 %q", v.Text)
					seen[v.Text] = true
				}
			})
		}
	}
}

func TestGenerateShortQueryIsPartial(t *testing.T) {
	b, err := New(nil).Generate("cat", nil, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrPartialResult))
	assert.Less(t, len(b.Variants), 5)
	assert.NotEmpty(t, b.Variants)

	var pe *contract.PartialError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 5, pe.Want)
	assert.Equal(t, len(b.Variants), pe.Got)
}

func TestGenerateAllProtected(t *testing.T) {
	b, err := New(nil).Generate("NASA JFK", nil, 3)
	require.ErrorIs(t, err, contract.ErrPartialResult)
	assert.Empty(t, b.Variants)
	assert.Equal(t, []string{"NASA", "JFK"}, b.Protected)
}

func TestGenerateMultiWordProtectedTerm(t *testing.T) {
	b, _ := New(nil).Generate("hotels in New York city", []string{"New York"}, 10)
	require.NotEmpty(t, b.Variants)
	for _, v := range b.Variants {
		assert.Contains(t, v.Text, "New York")
	}
}

func TestGenerateInvalidInput(t *testing.T) {
	g := New(nil)
	for _, c := range []struct {
		q string
		n int
	}{{"", 3}, {"   ", 3}, {"ok query", 0}, {"ok query", -1}} {
		_, err := g.Generate(c.q, nil, c.n)
		assert.ErrorIs(t, err, contract.ErrInvalidInput, "%q n=%d", c.q, c.n)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := New(nil)
	a, _ := g.Generate("cheap flights to chicago", nil, 8)
	b, _ := g.Generate("cheap flights to chicago", nil, 8)
	assert.Equal(t, texts(a.Variants), texts(b.Variants))
}

func TestFillSeedFirst(t *testing.T) {
	g := New(nil)
	seed := []contract.Variant{
		{Text: "JFK flihgt schedule", Types: []contract.ErrorType{contract.Unknown}},
		{Text: "JKF flight schedule"},
		{Text: "JFK flight schedule"},
		{Text: "JFK flihgt schedule"},
		{Text: "Here are your variants:"},
	}
	b, err := g.Fill("JFK flight schedule", nil, 3, seed)
	require.NoError(t, err)
	require.Len(t, b.Variants, 3)
	assert.Equal(t, "JFK flihgt schedule", b.Variants[0].Text)
	assert.Equal(t, 4, b.Dropped)
}

func TestAcceptDoesNotTopUp(t *testing.T) {
	g := New(nil)
	b, err := g.Accept("machine learning", nil, 3, []contract.Variant{{Text: "machien learning"}})
	require.ErrorIs(t, err, contract.ErrPartialResult)
	assert.Equal(t, []string{"machien learning"}, texts(b.Variants))
}

func TestFilterIdempotent(t *testing.T) {
	g := New(nil)
	for _, q := range []string{"machine learning applications", "JFK flight schedule", "cat"} {
		b, _ := g.Generate(q, nil, 6)
		assert.Zero(t, g.Filter().Revalidate(b), q)

		// 后端路径：已接纳的批再过一遍 Apply 不丢任何成员
		acc, _ := g.Accept(q, nil, len(b.Variants), b.Variants)
		kept, dropped := g.Filter().Apply(acc.Query, acc.Protected, len(acc.Variants), acc.Variants)
		assert.Zero(t, dropped)
		assert.Equal(t, texts(acc.Variants), texts(kept))
	}
}

func TestAcceptRejectsNonMisspellings(t *testing.T) {
	g := New(nil)
	seed := []contract.Variant{{Text: "Sure!"}, {Text: "Okay"}, {Text: "dog"}, {Text: "caat"}}
	b, err := g.Accept("cat", nil, 3, seed)
	require.ErrorIs(t, err, contract.ErrPartialResult)
	assert.Equal(t, []string{"caat"}, texts(b.Variants))
	assert.Equal(t, 3, b.Dropped)

	// 长 query 的上限随长度增长
	b, err = g.Accept("machine learning applications", nil, 2, []contract.Variant{
		{Text: "mashine lerning aplications"},
		{Text: "deep neural network tools"},
	})
	require.ErrorIs(t, err, contract.ErrPartialResult)
	assert.Equal(t, []string{"mashine lerning aplications"}, texts(b.Variants))
}

func TestProtectedSubstringInsideWord(t *testing.T) {
	b, _ := New(nil).Generate("chatbot apps", []string{"chat"}, 8)
	assert.Equal(t, []string{"chat"}, b.Protected)
	require.NotEmpty(t, b.Variants)
	for _, v := range b.Variants {
		assert.True(t, strings.HasPrefix(v.Text, "chatbot "), v.Text)
	}

	// 后端候选改动词内保护词时被拒绝
	acc, _ := New(nil).Accept("chatbot apps", []string{"chat"}, 2, []contract.Variant{
		{Text: "shatbot apps"}, {Text: "chatbot aps"},
	})
	assert.Equal(t, []string{"chatbot aps"}, texts(acc.Variants))
	assert.Equal(t, 1, acc.Dropped)
}

func TestFilterRejectsRewrite(t *testing.T) {
	f := Filter{}
	err := f.Check("cheap flights", "inexpensive airline tickets", nil)
	assert.ErrorIs(t, err, contract.ErrInvariantViolation)
	assert.NoError(t, f.Check("cheap flights", "cheep flights", nil))
}

func TestTokenizeRoundTrip(t *testing.T) {
	for _, q := range []string{"a  b\tc ", " lead", "one", "x,  (y) z!"} {
		assert.Equal(t, q, join(tokenize(q), nil))
	}
	toks := tokenize("(hello), world")
	assert.Equal(t, "(", toks[0].lead)
	assert.Equal(t, "hello", string(toks[0].core))
	assert.Equal(t, "),", toks[0].trail)
}

func TestRuleEdits(t *testing.T) {
	str := func(ws [][]rune) []string {
		out := make([]string, len(ws))
		for i, w := range ws {
			out[i] = string(w)
		}
		return out
	}
	assert.Equal(t, []string{"fone"}, str(phoneticEdits([]rune("phone"))))
	assert.Equal(t, []string{"Kat"}, str(phoneticEdits([]rune("Cat"))))
	assert.Equal(t, []string{"sity"}, str(phoneticEdits([]rune("city"))))
	assert.Equal(t, []string{"quik", "kwick"}, str(phoneticEdits([]rune("quick"))))
	assert.Empty(t, omissionEdits([]rune("cat")))
	assert.Equal(t, []string{"bok"}, str(omissionEdits([]rune("book"))))
	assert.Empty(t, transpositionEdits([]rune("abc")))
	assert.Equal(t, []string{"wrod"}, str(transpositionEdits([]rune("word"))))
	assert.Equal(t, []string{"catt", "caaat", "ccccat"}, str(repetitionEdits([]rune("cat"))))
}
