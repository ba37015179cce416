package search

import (
	"context"
	"strings"
)

// Static answers from a fixed keyword table. It backs local runs where no
// search index is available.
type Static struct {
	Entries  []Entry
	NoResult string
}

// Entry is one keyword answer. Keyword matching is case-insensitive.
type Entry struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Answer  string `json:"answer" yaml:"answer"`
	Link    string `json:"link,omitempty" yaml:"link,omitempty"`
}

func (s Static) Search(_ context.Context, query string) (string, string, error) {
	q := strings.ToLower(query)
	for _, e := range s.Entries {
		if e.Keyword != "" && strings.Contains(q, strings.ToLower(e.Keyword)) {
			return e.Answer, e.Link, nil
		}
	}
	if s.NoResult != "" {
		return s.NoResult, "", nil
	}
	return DefaultNoResult, "", nil
}
