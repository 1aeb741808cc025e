// Package tokenizer provides text tokenisation for the keyword index.
// It splits input on runs of non-word characters, lower-cases every token,
// and removes stop-words. There is no stemming: keywords match exactly.
package tokenizer

import (
	"strings"
	"unicode"
)

// DefaultStopWords are articles, conjunctions, common prepositions, and the
// possessive suffix left behind when "'s" is split off a word.
var DefaultStopWords = []string{
	"a", "an", "and", "but", "de", "etc", "in", "is", "le",
	"of", "on", "or", "the", "s", "'s",
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenizer carries the stop-word set. The zero value is not usable; use New
// or Default.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// New builds a Tokenizer with the given stop-words, which are lower-cased.
func New(stopWords []string) *Tokenizer {
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &Tokenizer{stopWords: set}
}

var defaultTokenizer = New(DefaultStopWords)

// Default returns the shared Tokenizer using DefaultStopWords.
func Default() *Tokenizer { return defaultTokenizer }

// IsWordRune reports whether r belongs to a word: letters, digits, underscore.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// IsStopWord expects an already lower-cased word.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[word]
	return ok
}

// Tokenize breaks text into lower-cased Tokens with stop-words removed.
// Positions count surviving tokens only.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := Split(text)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if t.IsStopWord(word) {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms is Tokenize without positions.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Split lower-cases text and splits it on runs of non-word characters,
// keeping stop-words.
func Split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !IsWordRune(r)
	})
}
