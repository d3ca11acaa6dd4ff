package metamodel

import (
	"github.com/cockroachdb/errors"
	"github.com/jinzhu/copier"

	"github.com/oaofoa/metacore/internal/ident"
)

// Instance is a row-like record bound to a MetaClass. It has no intrinsic
// key beyond object identity (spec.md §3); values are stored under the
// attribute name folded to upper case via internal/ident, and names maps
// each folded name back to its declared-case form.
type Instance struct {
	class  *MetaClass
	values map[string]any // keyed by ident.Normalize(attribute name)
	names  map[string]string // normalized -> declared-case name, for iteration
}

// Class returns the MetaClass this instance belongs to.
func (i *Instance) Class() *MetaClass { return i.class }

// Get returns the current value of attribute name.
func (i *Instance) Get(name string) (any, error) {
	attr, ok := i.class.attrByName(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownClass, "attribute %q on class %q", name, i.class.Kind())
	}
	return i.values[ident.Normalize(attr.Name)], nil
}

// MustGet is Get without an error return, for call sites that already know
// the attribute exists (tests, navigation predicates).
func (i *Instance) MustGet(name string) any {
	v, _ := i.Get(name)
	return v
}

// Set assigns a new value to attribute name, coercing it to the attribute's
// declared type. Every attribute write clears the owning MetaClass's query
// cache before returning, per spec.md §5's mutation discipline.
func (i *Instance) Set(name string, value any) error {
	attr, ok := i.class.attrByName(name)
	if !ok {
		return errors.Wrapf(ErrUnknownClass, "attribute %q on class %q", name, i.class.Kind())
	}
	coerced, err := Coerce(attr.Type, value)
	if err != nil {
		return errors.Wrapf(err, "set %s.%s", i.class.Kind(), attr.Name)
	}
	i.values[ident.Normalize(attr.Name)] = coerced
	i.class.invalidateCache()
	return nil
}

// setRaw assigns without coercion or cache invalidation. It is used only by
// MetaClass.New while constructing a fresh instance; New invalidates the
// cache itself once the instance joins the pool.
func (i *Instance) setRaw(name string, value any) {
	i.values[ident.Normalize(name)] = value
}

// Attributes returns the owning class's attribute list (declared name and
// type) in schema order, used by the Persister walk.
func (i *Instance) Attributes() []Attribute {
	return i.class.Attributes()
}

// Clone makes a shallow attribute-for-attribute copy of src, unbound to any
// MetaClass's pool until MetaClass.New's caller (or the MetaClass itself)
// inserts it. Implemented with jinzhu/copier's struct-free map copy so the
// dynamic attribute bag doesn't need a generated Go type per class
// (spec.md §4.3, §9 "Dynamic attribute access").
func (src *Instance) Clone() *Instance {
	dst := &Instance{
		class:  src.class,
		values: make(map[string]any, len(src.values)),
		names:  make(map[string]string, len(src.names)),
	}
	_ = copier.CopyWithOption(&dst.values, &src.values, copier.Option{DeepCopy: true})
	for k, v := range src.names {
		dst.names[k] = v
	}
	return dst
}
