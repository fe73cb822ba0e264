package queryir

// Verification is the payload checked against executed rows: an expected
// row count, a narrowing predicate, or both. The zero value verifies
// nothing.
type Verification struct {
	Length *int
	Filter Expression
}

// IsZero reports whether v asserts nothing.
func (v Verification) IsZero() bool {
	return v.Length == nil && v.Filter == nil
}
