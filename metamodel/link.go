package metamodel

// Link is a unidirectional connector: the directed half of an Association
// (spec.md §3, §4.4). Its state is a multimap from instances of From to a
// neighbor set of instances of To, stored in first-connect order so
// navigation yields neighbors in insertion order (spec.md §5).
type Link struct {
	From *MetaClass
	To   *MetaClass

	RelID       string // normalized "R<n>"
	Phrase      string // as given for this end; not cleared for non-reflexive associations, so lookups must pass it
	Conditional bool
	Many        bool

	// KeyMap pairs (from-attribute, to-attribute) in order; it formalizes
	// referential-attribute propagation once an Association binds it
	// (spec.md §4.5).
	KeyMap []KeyPair

	neighbors map[*Instance][]*Instance
	index     map[*Instance]map[*Instance]int // neighbor -> position, for O(1) membership and position lookup on removal
}

// KeyPair is one (from-attribute, to-attribute) correspondence in an
// Association's key map.
type KeyPair struct {
	FromAttr string
	ToAttr   string
}

func newLink(from, to *MetaClass, relID, phrase string, conditional, many bool) *Link {
	return &Link{
		From:        from,
		To:          to,
		RelID:       relID,
		Phrase:      phrase,
		Conditional: conditional,
		Many:        many,
		neighbors:   make(map[*Instance][]*Instance),
		index:       make(map[*Instance]map[*Instance]int),
	}
}

// Cardinality renders the diagnostic cardinality string, e.g. "1C", "M".
func (l *Link) Cardinality() string {
	s := "1"
	if l.Many {
		s = "M"
	}
	if l.Conditional {
		s += "C"
	}
	return s
}

// Connect adds b to a's neighbor set. When check is true and the link is
// not many, connecting a second neighbor to an already-related a is
// rejected (returns false) rather than silently overwriting the existing
// edge (spec.md §4.4). Connecting an already-present neighbor is a no-op
// that still reports success (idempotent relate, spec.md §8 scenario 5).
func (l *Link) Connect(a, b *Instance, check bool) bool {
	if l.has(a, b) {
		return true
	}
	if check && !l.Many && len(l.neighbors[a]) >= 1 {
		return false
	}
	l.neighbors[a] = append(l.neighbors[a], b)
	if l.index[a] == nil {
		l.index[a] = make(map[*Instance]int)
	}
	l.index[a][b] = len(l.neighbors[a]) - 1
	return true
}

func (l *Link) has(a, b *Instance) bool {
	_, ok := l.index[a][b]
	return ok
}

// Disconnect removes b from a's neighbor set, reporting whether anything
// changed.
func (l *Link) Disconnect(a, b *Instance) bool {
	pos, ok := l.index[a][b]
	if !ok {
		return false
	}
	neighbors := l.neighbors[a]
	neighbors = append(neighbors[:pos], neighbors[pos+1:]...)
	l.neighbors[a] = neighbors
	delete(l.index[a], b)
	for n, p := range l.index[a] {
		if p > pos {
			l.index[a][n] = p - 1
		}
	}
	if len(neighbors) == 0 {
		delete(l.neighbors, a)
		delete(l.index, a)
	}
	return true
}

// Navigate yields a's current neighbor set in insertion order, empty when
// a has none.
func (l *Link) Navigate(a *Instance) []*Instance {
	out := l.neighbors[a]
	cp := make([]*Instance, len(out))
	copy(cp, out)
	return cp
}

// forget removes every edge touching inst, used when an instance is
// deleted from its MetaClass's pool.
func (l *Link) forget(inst *Instance) {
	delete(l.neighbors, inst)
	delete(l.index, inst)
	for a := range l.neighbors {
		if l.has(a, inst) {
			l.Disconnect(a, inst)
		}
	}
}
