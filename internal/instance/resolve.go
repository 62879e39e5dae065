package instance

// Resolve returns the innermost instance under offset.
//
// At each level it picks the child whose closed span [Start, End] touches
// the offset. Token instances win over raw delimiter gaps, and when two
// siblings share the boundary the later one wins, so a cursor extends the
// token about to be typed. When no child touches the offset the current
// instance is returned, so resolution always yields an instance.
func (t *Tree) Resolve(offset int) ID {
	cur := Root
	for {
		best := None
		for _, c := range t.nodes[cur].Children {
			child := &t.nodes[c]
			if !child.Span.Touches(offset) {
				continue
			}
			if best == None || t.nodes[best].Kind == KindRaw || child.Kind != KindRaw {
				best = c
			}
		}
		if best == None {
			return cur
		}
		cur = best
	}
}

// At is Resolve returning the instance itself.
func (t *Tree) At(offset int) *Instance {
	return &t.nodes[t.Resolve(offset)]
}
