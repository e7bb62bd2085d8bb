package index

// Posting records the occurrences of a term within one document: the ordered
// token positions in the document's concatenated indexed text. Term frequency
// is the length of Positions.
type Posting struct {
	DocID     string
	Positions []int
}

// Frequency returns the term frequency for this posting.
func (p Posting) Frequency() int {
	return len(p.Positions)
}

// PostingMap maps document id to the Posting of one term in that document.
type PostingMap map[string]*Posting

// FieldSet is the set of field names a term occurred in for one document.
type FieldSet map[string]struct{}
