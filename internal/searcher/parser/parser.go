package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/tokenizer"
)

// Token is one query unit: a run of word characters, or the contents of a
// double-quoted run when Phrase is set.
type Token struct {
	Text   string `json:"text"`
	Phrase bool   `json:"phrase"`
}

type QueryPlan struct {
	Tokens   []Token `json:"tokens"`
	RawQuery string  `json:"raw_query"`
}

// Empty reports whether the plan has nothing to look up.
func (p *QueryPlan) Empty() bool { return len(p.Tokens) == 0 }

// Parse scans query left to right. A double quote opens a phrase that runs
// to the next double quote; the quotes are stripped and surrounding blanks
// trimmed. A quote with no partner is ignored and scanning continues after
// it. Every other maximal run of word characters is a word token; anything
// else separates tokens. Case is preserved.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Tokens:   make([]Token, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	for i := 0; i < len(query); {
		r, size := utf8.DecodeRuneInString(query[i:])
		switch {
		case r == '"':
			end := strings.IndexByte(query[i+1:], '"')
			if end < 0 {
				i += size
				continue
			}
			phrase := strings.TrimSpace(query[i+1 : i+1+end])
			if phrase != "" {
				plan.Tokens = append(plan.Tokens, Token{Text: phrase, Phrase: true})
			}
			i += end + 2
		case tokenizer.IsWordRune(r):
			start := i
			for i < len(query) {
				r, size = utf8.DecodeRuneInString(query[i:])
				if !tokenizer.IsWordRune(r) {
					break
				}
				i += size
			}
			plan.Tokens = append(plan.Tokens, Token{Text: query[start:i]})
		default:
			i += size
		}
	}
	return plan
}
