package index

import "github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"

// Posting is one Title in a keyword's posting set. Ordinal is the Title's
// stable admission number in the index.
type Posting struct {
	Ordinal uint32
	Title   book.Title
}

// PostingList is ordered by Ordinal.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}
