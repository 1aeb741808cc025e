package index

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/tokenizer"
)

// Keywords returns the distinct keywords a Title is indexed under: the
// tokens of its text, authors and year, plus the whole lower-cased text and
// each whole lower-cased author name as compound keys. Order is first
// occurrence.
func Keywords(tok *tokenizer.Tokenizer, t book.Title) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0, 16)
	add := func(k string) {
		if k == "" {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	year := strconv.Itoa(t.Year())
	authors := t.Authors()
	for _, term := range tok.Terms(t.Text() + " " + strings.Join(authors, " ") + " " + year) {
		add(term)
	}
	add(strings.ToLower(t.Text()))
	for _, a := range authors {
		if strings.TrimSpace(a) == "" {
			continue
		}
		add(strings.ToLower(a))
	}
	add(year)
	return keys
}
