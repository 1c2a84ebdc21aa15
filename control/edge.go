package control

// Edge remembers the previous level of a boolean input.
type Edge struct {
	Prev bool
}

// Rising reports a false→true transition and returns the updated detector.
func (e Edge) Rising(cur bool) (bool, Edge) {
	return cur && !e.Prev, Edge{Prev: cur}
}

// Falling reports a true→false transition and returns the updated detector.
func (e Edge) Falling(cur bool) (bool, Edge) {
	return !cur && e.Prev, Edge{Prev: cur}
}
