package metamodel

import (
	"github.com/cockroachdb/errors"

	"github.com/oaofoa/metacore/internal/ident"
)

// QuerySet is an ordered set of instances preserving first-encounter order,
// the result type of many-valued navigation (spec.md §4.8, GLOSSARY).
type QuerySet struct {
	order []*Instance
	seen  map[*Instance]bool
}

func newQuerySet() *QuerySet {
	return &QuerySet{seen: make(map[*Instance]bool)}
}

func (qs *QuerySet) add(inst *Instance) {
	if qs.seen[inst] {
		return
	}
	qs.seen[inst] = true
	qs.order = append(qs.order, inst)
}

// Slice returns the set's members in first-encounter order.
func (qs *QuerySet) Slice() []*Instance {
	out := make([]*Instance, len(qs.order))
	copy(out, qs.order)
	return out
}

// Len reports the number of members.
func (qs *QuerySet) Len() int { return len(qs.order) }

// One returns the first member, or nil if the set is empty.
func (qs *QuerySet) One() *Instance {
	if len(qs.order) == 0 {
		return nil
	}
	return qs.order[0]
}

// Union returns a new QuerySet containing every member of qs and other,
// first-encounter order preserved (qs's members first).
func (qs *QuerySet) Union(other *QuerySet) *QuerySet {
	out := newQuerySet()
	for _, inst := range qs.order {
		out.add(inst)
	}
	for _, inst := range other.order {
		out.add(inst)
	}
	return out
}

// Difference returns a new QuerySet containing qs's members that are not
// in other, preserving qs's order.
func (qs *QuerySet) Difference(other *QuerySet) *QuerySet {
	out := newQuerySet()
	for _, inst := range qs.order {
		if !other.seen[inst] {
			out.add(inst)
		}
	}
	return out
}

// step is one (kind, rel-id, phrase) hop accumulated by a NavChain.
type step struct {
	kind   string
	relID  any
	phrase string
}

// NavChain wraps an initial handle (a single instance, a QuerySet, or
// neither) and accumulates a pipeline of navigation steps, mirroring the
// action language's "select ... related by ..." idiom (spec.md §4.8).
//
// Two equivalent surface forms exist in the source language: explicit
// repeated chain.Nav(...) calls, and a sugared indexing/member-access
// syntax. Idiomatic Go has no operator overloading, so this chain only
// offers the explicit builder form (spec.md §9 "Polymorphic navigation
// chain").
type NavChain struct {
	model *MetaModel
	one   *Instance
	many  *QuerySet
	steps []step
}

// FromOne starts a chain at a single instance (possibly nil).
func FromOne(m *MetaModel, inst *Instance) *NavChain {
	return &NavChain{model: m, one: inst}
}

// FromMany starts a chain at a QuerySet.
func FromMany(m *MetaModel, qs *QuerySet) *NavChain {
	return &NavChain{model: m, many: qs}
}

// Nav appends a navigation hop to the chain's pipeline.
func (n *NavChain) Nav(kind string, relID any, phrase string) *NavChain {
	n.steps = append(n.steps, step{kind: kind, relID: relID, phrase: phrase})
	return n
}

// resolve walks the accumulated steps from the chain's starting handle and
// returns the resulting QuerySet.
func (n *NavChain) resolve() (*QuerySet, error) {
	current := newQuerySet()
	if n.one != nil {
		current.add(n.one)
	} else if n.many != nil {
		for _, inst := range n.many.order {
			current.add(inst)
		}
	}

	for _, s := range n.steps {
		next := newQuerySet()
		for _, inst := range current.order {
			neighbors, err := inst.class.Navigate(inst, s.kind, s.relID, s.phrase)
			if err != nil {
				return nil, err
			}
			for _, nb := range neighbors {
				next.add(nb)
			}
		}
		current = next
	}
	return current, nil
}

// Many invokes the chain, returning its QuerySet (the "Many" chain
// variant, spec.md §4.8).
func (n *NavChain) Many() (*QuerySet, error) {
	return n.resolve()
}

// One invokes the chain, returning the first matching instance or nil
// (the "One/Any" chain variant, spec.md §4.8).
func (n *NavChain) One() (*Instance, error) {
	qs, err := n.resolve()
	if err != nil {
		return nil, err
	}
	return qs.One(), nil
}

// NavigateSubtype walks every Link on super's MetaClass whose rel-id
// matches relID and returns the first resulting instance, used when the
// association models a sub/super relationship (spec.md §4.8).
func NavigateSubtype(super *Instance, relID any) (*Instance, error) {
	want := ident.RelIDFrom(relID)
	for _, link := range super.class.links {
		if link.RelID != want {
			continue
		}
		neighbors := link.Navigate(super)
		if len(neighbors) > 0 {
			return neighbors[0], nil
		}
	}
	return nil, nil
}

// opposingPhrase scans class's own outgoing links for one under relID whose
// phrase differs from phrase — the other half of a reflexive association —
// matching the original source's derivation (scan metaclass.links for
// to_metaclass == metaclass, same rel_id, a different phrase) rather than
// requiring the caller to supply it. ErrUnknownLink if no such link exists.
func opposingPhrase(class *MetaClass, relID any, phrase string) (string, error) {
	want := ident.RelIDFrom(relID)
	wantPhrase := ident.Normalize(phrase)
	for _, link := range class.links {
		if link.To != class || link.RelID != want {
			continue
		}
		if ident.Normalize(link.Phrase) == wantPhrase {
			continue
		}
		return link.Phrase, nil
	}
	return "", errors.Wrapf(ErrUnknownLink, "%s reflexive %v has no opposing phrase for %q", class.Kind(), relID, phrase)
}

// SortReflexive sequences members along a conditional reflexive association
// (spec.md §4.8): it finds the instance(s) with no predecessor in phrase,
// then follows the opposing phrase from each head. A cycle terminates when
// navigation returns to the first instance visited; if every candidate has
// a predecessor (fully cyclic), any member is chosen as the start. The
// opposing phrase is derived from the class's own link table rather than
// taken as a parameter (spec.md §4.8; original source's sort_reflexive).
func SortReflexive(set *QuerySet, relID any, phrase string) ([]*Instance, error) {
	members := set.Slice()
	if len(members) == 0 {
		return nil, nil
	}
	opposing, err := opposingPhrase(members[0].class, relID, phrase)
	if err != nil {
		return nil, err
	}
	inSet := make(map[*Instance]bool, len(members))
	for _, m := range members {
		inSet[m] = true
	}

	hasPredecessor := func(inst *Instance) (bool, error) {
		preds, err := inst.class.Navigate(inst, inst.class.Kind(), relID, phrase)
		if err != nil {
			return false, err
		}
		for _, p := range preds {
			if inSet[p] {
				return true, nil
			}
		}
		return false, nil
	}

	var head *Instance
	for _, m := range members {
		has, err := hasPredecessor(m)
		if err != nil {
			return nil, err
		}
		if !has {
			head = m
			break
		}
	}
	if head == nil {
		head = members[0]
	}

	out := make([]*Instance, 0, len(members))
	visited := make(map[*Instance]bool, len(members))
	cur := head
	for cur != nil && inSet[cur] && !visited[cur] {
		out = append(out, cur)
		visited[cur] = true
		nexts, err := cur.class.Navigate(cur, cur.class.Kind(), relID, opposing)
		if err != nil {
			return nil, err
		}
		var next *Instance
		for _, n := range nexts {
			if inSet[n] && !visited[n] {
				next = n
				break
			}
		}
		cur = next
	}
	return out, nil
}
