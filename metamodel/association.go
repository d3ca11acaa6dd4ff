package metamodel

import (
	"github.com/cockroachdb/errors"

	"github.com/oaofoa/metacore/internal/ident"
)

// AssociationEnd describes one side of an Association being defined
// (spec.md §4.5).
type AssociationEnd struct {
	Class       *MetaClass
	Phrase      string
	Conditional bool
	Many        bool
	// Keys are, on the dependent end, the referential attribute names that
	// mirror the independent end's identifying attributes (spec.md §3's
	// invariant 3: corresponding elements define the key map in each
	// direction, so len(Dependent.Keys) == len(Independent.Keys)).
	Keys []string
}

// Association pairs two opposing Links plus the key lists that formalize
// which side carries referential keys (spec.md §3, §4.5). This
// implementation chooses the key-copy model uniformly (spec.md §9, §1 of
// SPEC_FULL.md): Dependent's Link ("source" in spec.md's relate/unrelate
// text) holds the referential attributes that are copied from Independent's
// identifying attributes on relate, and reset to null on unrelate.
type Association struct {
	RelID       string
	Dependent   *Link // registered on the dependent MetaClass, points to Independent's class
	Independent *Link // registered on the independent MetaClass, points to Dependent's class

	DependentKeys   []string // referential attribute names, dependent side
	IndependentKeys []string // identifying attribute names, independent side
}

// Reflexive reports whether both ends of the Association are the same
// MetaClass (spec.md §3).
func (a *Association) Reflexive() bool {
	return a.Dependent.From == a.Independent.From
}

// DefineAssociation registers a bidirectional Association between
// dependent.Class and independent.Class, binds both ends' key maps, updates
// referential-attribute bookkeeping, and runs the batch-relate pass over
// every existing dependent instance (spec.md §4.5). Reflexive associations
// (dependent.Class == independent.Class) require non-empty, distinct
// phrases on both ends (spec.md §4.6).
func (m *MetaModel) DefineAssociation(relID any, dependent, independent AssociationEnd) (*Association, error) {
	if len(dependent.Keys) != len(independent.Keys) {
		return nil, errors.Newf("metamodel: association %v key lists differ in length (%d vs %d)",
			relID, len(dependent.Keys), len(independent.Keys))
	}
	reflexive := dependent.Class == independent.Class
	if reflexive && (dependent.Phrase == "" || independent.Phrase == "" ||
		ident.Normalize(dependent.Phrase) == ident.Normalize(independent.Phrase)) {
		return nil, errors.Wrapf(ErrUnknownLink, "reflexive association %v requires non-empty, distinct phrases", relID)
	}

	for _, a := range dependent.Keys {
		if _, ok := dependent.Class.attrByName(a); !ok {
			return nil, errors.Wrapf(ErrUnknownClass, "dependent key %q on %q", a, dependent.Class.Kind())
		}
	}
	for _, a := range independent.Keys {
		if _, ok := independent.Class.attrByName(a); !ok {
			return nil, errors.Wrapf(ErrUnknownClass, "independent key %q on %q", a, independent.Class.Kind())
		}
	}

	depLink := dependent.Class.AddLink(independent.Class, relID, dependent.Phrase, dependent.Conditional, dependent.Many)
	indepLink := independent.Class.AddLink(dependent.Class, relID, independent.Phrase, independent.Conditional, independent.Many)

	keyMap := make([]KeyPair, len(dependent.Keys))
	reverseKeyMap := make([]KeyPair, len(independent.Keys))
	for i := range dependent.Keys {
		keyMap[i] = KeyPair{FromAttr: dependent.Keys[i], ToAttr: independent.Keys[i]}
		reverseKeyMap[i] = KeyPair{FromAttr: independent.Keys[i], ToAttr: dependent.Keys[i]}
	}
	depLink.KeyMap = keyMap
	indepLink.KeyMap = reverseKeyMap

	for _, k := range dependent.Keys {
		dependent.Class.markReferential(k)
	}

	assoc := &Association{
		RelID:           ident.RelIDFrom(relID),
		Dependent:       depLink,
		Independent:     indepLink,
		DependentKeys:   dependent.Keys,
		IndependentKeys: independent.Keys,
	}
	m.associations = append(m.associations, assoc)

	for _, inst := range dependent.Class.Pool() {
		m.batchRelateOne(assoc, inst)
	}

	return assoc, nil
}

// batchRelateOne forms a lookup key from inst's current referential
// (DependentKeys) values and connects every matching Independent instance
// via connect(check=false), reconciling schemas defined after instances
// already exist (spec.md §4.5 step 4).
func (m *MetaModel) batchRelateOne(assoc *Association, inst *Instance) {
	pred := make(map[string]any, len(assoc.DependentKeys))
	allPresent := true
	for i, depAttr := range assoc.DependentKeys {
		v, err := inst.Get(depAttr)
		if err != nil {
			allPresent = false
			break
		}
		attr, _ := inst.class.attrByName(depAttr)
		if IsNull(attr.Type, v) {
			allPresent = false
			break
		}
		pred[assoc.IndependentKeys[i]] = v
	}
	if !allPresent {
		return
	}

	indepClass := assoc.Independent.From
	matches := indepClass.SelectManyFunc(func(candidate *Instance) bool {
		for name, want := range pred {
			got, err := candidate.Get(name)
			if err != nil || got != want {
				return false
			}
		}
		return true
	})
	for _, target := range matches.Slice() {
		assoc.Dependent.Connect(inst, target, false)
		assoc.Independent.Connect(target, inst, false)
	}
}
