package queryir

// Children returns the direct sub-expressions of e. Sub-queries are a new
// scope and are not descended into.
func Children(e Expression) []Expression {
	switch n := e.(type) {
	case Comparator:
		return []Expression{n.Left, n.Right}
	case Logical:
		return []Expression{n.Left, n.Right}
	case NullTest:
		return []Expression{n.Operand}
	case Not:
		return []Expression{n.Operand}
	case InList:
		return append([]Expression{n.Left}, n.Items...)
	case InSubquery:
		return []Expression{n.Left}
	case JSONPath:
		return []Expression{n.Base}
	case Bracket:
		return []Expression{n.Inner}
	case If:
		return []Expression{n.Cond, n.Then, n.Else}
	case Aggregate:
		if n.Arg != nil {
			return []Expression{n.Arg}
		}
	case ArrayConstant:
		return n.Elems
	}
	return nil
}

// Walk calls fn for e and, while fn returns true, for every descendant in
// depth-first order.
func Walk(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}
