package protect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbbreviations(t *testing.T) {
	cases := map[string][]string{
		"JFK flight schedule":         {"JFK"},
		"US economy and US trade":     {"US"},
		"NASA launch from KSC":        {"NASA", "KSC"},
		"machine learning":            nil,
		"A single capital":            nil,
		"iPhone vs NASDAQ listing":    {"NASDAQ"},
		"JFKs terminals":              nil,
		"JFKé lounge":                 nil,
		"OpenAI and AWS":              {"AWS"},
		"(NYC) hotels, LAX.":          {"NYC", "LAX"},
		"US_economy":                  nil,
	}
	for q, want := range cases {
		assert.Equal(t, want, Abbreviations(q), q)
	}
}

func TestIsAbbreviation(t *testing.T) {
	assert.True(t, IsAbbreviation("JFK"))
	assert.True(t, IsAbbreviation("US"))
	assert.False(t, IsAbbreviation("A"))
	assert.False(t, IsAbbreviation("Jfk"))
	assert.False(t, IsAbbreviation("JFK,"))
	assert.False(t, IsAbbreviation("JFKé"))
}

func TestSetFor(t *testing.T) {
	s := NewSet([]string{"Kubernetes", " ", "iPhone"}, []string{"Kubernetes", "OpenAI"})
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("iPhone"))
	assert.False(t, s.Contains("iphone"))

	got := s.For("OpenAI and Kubernetes on AWS")
	assert.Equal(t, []string{"AWS", "Kubernetes", "OpenAI"}, got)

	// 额外保护词按子串选中，可位于词内
	assert.Equal(t, []string{"chat"}, NewSet([]string{"chat"}).For("chatbot apps"))

	var nilSet *Set
	assert.Equal(t, []string{"JFK"}, nilSet.For("JFK flight"))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "None", Describe(nil))
	assert.Equal(t, "JFK, US", Describe([]string{"JFK", "US"}))
}
