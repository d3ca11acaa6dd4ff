package metamodel

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/oaofoa/metacore/internal/ident"
	"github.com/oaofoa/metacore/logger"
)

// MetaModel owns MetaClasses and Associations; it is the entry point for
// schema definition and selection (spec.md §3).
type MetaModel struct {
	classes      map[string]*MetaClass // normalized kind -> class
	classOrder   []*MetaClass          // definition order, for the Persister walk
	associations []*Association

	idGen IdGenerator

	// derived records the identity of mk_derived_association calls; the
	// hook is a documented no-op (spec.md §9 Open Questions, SPEC_FULL §4).
	derived []string
}

// NewMetaModel constructs an empty MetaModel. gen defaults to
// NewUUIDGenerator when nil.
func NewMetaModel(gen IdGenerator) *MetaModel {
	if gen == nil {
		gen = NewUUIDGenerator()
	}
	return &MetaModel{
		classes: make(map[string]*MetaClass),
		idGen:   gen,
	}
}

// DefineClass registers a new MetaClass under kind. Two classes with the
// same upper-case kind cannot coexist (spec.md §3 invariant 1).
func (m *MetaModel) DefineClass(kind string) (*MetaClass, error) {
	key := ident.Normalize(kind)
	if _, exists := m.classes[key]; exists {
		return nil, errors.Wrapf(ErrDuplicateClass, "class %q", kind)
	}
	c := newMetaClass(m, kind)
	m.classes[key] = c
	m.classOrder = append(m.classOrder, c)
	return c, nil
}

// Class looks up a previously defined MetaClass by kind.
func (m *MetaModel) Class(kind string) (*MetaClass, bool) {
	c, ok := m.classes[ident.Normalize(kind)]
	return c, ok
}

// mustClass fetches a MetaClass or an ErrUnknownClass.
func (m *MetaModel) mustClass(kind string) (*MetaClass, error) {
	c, ok := m.Class(kind)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownClass, "class %q", kind)
	}
	return c, nil
}

// ClassKinds returns every registered class's canonical kind name, in
// definition order, for callers outside the package (the IntegrityChecker)
// that need to walk the whole schema.
func (m *MetaModel) ClassKinds() []string {
	out := make([]string, len(m.classOrder))
	for i, c := range m.classOrder {
		out[i] = c.Kind()
	}
	return out
}

// Associations returns every defined Association, in definition order.
func (m *MetaModel) Associations() []*Association {
	out := make([]*Association, len(m.associations))
	copy(out, m.associations)
	return out
}

// findAssociation locates the Association matching relID whose directional
// (from-kind, to-kind, phrase) tuple matches either end, per spec.md §4.6
// step 1. It returns the association plus the (dependent, independent)
// instance orientation for (a, b).
func (m *MetaModel) findAssociation(a, b *Instance, relID any, phrase string) (assoc *Association, dep, indep *Instance, err error) {
	want := ident.RelIDFrom(relID)
	wantPhrase := ident.Normalize(phrase)
	for _, as := range m.associations {
		if as.RelID != want {
			continue
		}
		if as.Dependent.From == a.class && as.Independent.From == b.class &&
			ident.Normalize(as.Dependent.Phrase) == wantPhrase {
			return as, a, b, nil
		}
		if as.Independent.From == a.class && as.Dependent.From == b.class &&
			ident.Normalize(as.Independent.Phrase) == wantPhrase {
			return as, b, a, nil
		}
	}
	return nil, nil, nil, errors.Wrapf(ErrUnknownLink, "association %v phrase %q between %s and %s",
		relID, phrase, a.class.Kind(), b.class.Kind())
}

// Relate connects a and b across the association identified by relID and
// phrase, copying the dependent side's referential attributes from the
// independent side's identifying attributes (spec.md §4.6). If either
// argument is nil, it returns (false, nil) without error. Reflexive
// associations require a non-empty phrase; omitting it is ErrUnknownLink.
func (m *MetaModel) Relate(a, b *Instance, relID any, phrase string) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	assoc, dep, indep, err := m.findAssociation(a, b, relID, phrase)
	if err != nil {
		return false, err
	}

	if !assoc.Dependent.Connect(dep, indep, true) {
		return false, errors.Wrapf(ErrRelateError, "%s already related via %v", dep.class.Kind(), relID)
	}
	if !assoc.Independent.Connect(indep, dep, true) {
		assoc.Dependent.Disconnect(dep, indep)
		return false, errors.Wrapf(ErrRelateError, "%s already related via %v", indep.class.Kind(), relID)
	}

	for i, depAttr := range assoc.DependentKeys {
		indepAttr := assoc.IndependentKeys[i]
		v, gerr := indep.Get(indepAttr)
		if gerr != nil {
			continue
		}
		want, _ := dep.Get(depAttr)
		attr, _ := dep.class.attrByName(depAttr)
		if want != nil && !IsNull(attr.Type, want) && want != v {
			logger.Runtime.Warnf("relate %s.%s: supplied value %v differs from related %v",
				dep.class.Kind(), depAttr, want, v)
		}
		if serr := dep.Set(depAttr, v); serr != nil {
			return false, errors.Wrapf(serr, "propagate %s.%s", dep.class.Kind(), depAttr)
		}
	}
	return true, nil
}

// Unrelate is Relate's inverse: it disconnects both directions and resets
// the dependent side's referential attributes to their type's null
// representation. Failure to disconnect (the pair was not related) is
// ErrUnrelateError. If either argument is nil, it returns (false, nil).
func (m *MetaModel) Unrelate(a, b *Instance, relID any, phrase string) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	assoc, dep, indep, err := m.findAssociation(a, b, relID, phrase)
	if err != nil {
		return false, err
	}

	okDep := assoc.Dependent.Disconnect(dep, indep)
	okIndep := assoc.Independent.Disconnect(indep, dep)
	if !okDep || !okIndep {
		return false, errors.Wrapf(ErrUnrelateError, "%s and %s not related via %v", a.class.Kind(), b.class.Kind(), relID)
	}

	for _, depAttr := range assoc.DependentKeys {
		attr, _ := dep.class.attrByName(depAttr)
		null, _ := DefaultValue(attr.Type, nil)
		if serr := dep.Set(depAttr, null); serr != nil {
			return false, errors.Wrapf(serr, "reset %s.%s", dep.class.Kind(), depAttr)
		}
	}
	return true, nil
}

// batchRelateDeferred is invoked by MetaClass.New when referential
// attributes were supplied as positional or named constructor arguments
// (spec.md §4.3): for each association whose dependent side is class and
// whose dependent keys are all among the supplied referential values, it
// runs batchRelateOne, the same pass DefineAssociation uses. That pass
// connects every matching independent instance without the cardinality
// check; it does not go through Relate, so it neither copies keys nor
// emits Relate's divergence warning.
func (m *MetaModel) batchRelateDeferred(class *MetaClass, inst *Instance, deferred map[string]any) {
	for _, assoc := range m.associations {
		if assoc.Dependent.From != class {
			continue
		}
		covered := true
		for _, k := range assoc.DependentKeys {
			if _, ok := deferred[ident.Normalize(k)]; !ok {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}
		m.batchRelateOne(assoc, inst)
	}
}

// forgetFromOtherLinks removes inst from every Link registered on another
// MetaClass that targets c, used when an instance is deleted
// (spec.md §4.3, §5).
func (m *MetaModel) forgetFromOtherLinks(c *MetaClass, inst *Instance) {
	for _, other := range m.classOrder {
		if other == c {
			continue
		}
		for _, link := range other.links {
			if link.To == c {
				link.forget(inst)
			}
		}
	}
}

// Select is the action-language facade's select_one: resolve kind and
// delegate to MetaClass.SelectOne (spec.md §6, SPEC_FULL §4).
func (m *MetaModel) Select(kind string, pred map[string]any) (*Instance, error) {
	c, err := m.mustClass(kind)
	if err != nil {
		return nil, err
	}
	return c.SelectOne(pred)
}

// SelectMany is the action-language facade's select_many.
func (m *MetaModel) SelectMany(kind string, pred map[string]any) (*QuerySet, error) {
	c, err := m.mustClass(kind)
	if err != nil {
		return nil, err
	}
	return c.SelectMany(pred)
}

// WhereEq is the facade's where_eq(**k) (spec.md §6): it builds the
// name/value predicate map Select, SelectMany, MetaClass.SelectOne and
// MetaClass.SelectMany expect, from alternating name/value arguments — the
// idiomatic Go stand-in for the action language's keyword-argument
// predicate builder (the original source's where(**kwargs), which wraps
// kwargs directly into the same kind of equality map). Panics if an odd
// number of arguments is given or a name isn't a string, since a predicate
// built this way is always a literal call-site expression, never dynamic
// input.
func WhereEq(pairs ...any) map[string]any {
	if len(pairs)%2 != 0 {
		panic("metamodel: WhereEq requires alternating name/value arguments")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic("metamodel: WhereEq argument is not a string attribute name")
		}
		out[name] = pairs[i+1]
	}
	return out
}

// DefineDerivedAssociation records the identity of a derived association
// for introspection without performing a batch-relate pass. The source
// systems' mk_derived_association hook is a no-op with unspecified intent
// (spec.md §9 Open Questions); this makes that no-op discoverable rather
// than silently absent (SPEC_FULL §4).
func (m *MetaModel) DefineDerivedAssociation(relID any, name string) {
	m.derived = append(m.derived, fmt.Sprintf("%s:%s", ident.RelIDFrom(relID), name))
}

// Persist walks MetaClasses in definition order and serializes their
// attributes, identifiers, and instance pool, followed by every
// Association's key lists, cardinalities, and phrases, to a simple
// line-oriented text format. This is the engine's one concrete
// implementation of the exposed-but-unspecified Persister interface
// (spec.md §6, SPEC_FULL §4) — it is not engine-internal durability.
func (m *MetaModel) Persist(w io.Writer) error {
	for _, c := range m.classOrder {
		if _, err := fmt.Fprintf(w, "CLASS %s\n", c.Kind()); err != nil {
			return err
		}
		for _, a := range c.Attributes() {
			if _, err := fmt.Fprintf(w, "  ATTR %s %s\n", a.Name, a.Type); err != nil {
				return err
			}
		}
		for name, attrs := range c.UniqueIdentifiers() {
			if _, err := fmt.Fprintf(w, "  IDENT %s %v\n", name, attrs); err != nil {
				return err
			}
		}
		for _, inst := range c.Pool() {
			if _, err := fmt.Fprintf(w, "  ROW %v\n", instanceRow(inst)); err != nil {
				return err
			}
		}
	}
	for _, assoc := range m.associations {
		if _, err := fmt.Fprintf(w, "ASSOC %s %s(%s,%q,%v) -> %s(%s,%q,%v)\n",
			assoc.RelID,
			assoc.Dependent.From.Kind(), assoc.Dependent.Cardinality(), assoc.Dependent.Phrase, assoc.DependentKeys,
			assoc.Independent.From.Kind(), assoc.Independent.Cardinality(), assoc.Independent.Phrase, assoc.IndependentKeys,
		); err != nil {
			return err
		}
	}
	return nil
}

func instanceRow(inst *Instance) map[string]any {
	out := make(map[string]any)
	for _, a := range inst.Attributes() {
		out[a.Name] = inst.MustGet(a.Name)
	}
	return out
}
