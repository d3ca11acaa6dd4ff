package metamodel

import (
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oaofoa/metacore/config"
	"github.com/oaofoa/metacore/internal/ident"
)

// linkKey is the composite (target-kind, rel-id, phrase) a Link is
// registered under (spec.md §3 "Relation ids and phrases").
type linkKey struct {
	toKind string
	relID  string
	phrase string
}

// MetaClass is the schema for one kind: its attribute list, indices,
// outgoing links, instance pool and query cache (spec.md §3, §4.3).
type MetaClass struct {
	kind  string // canonical (as-defined) case
	model *MetaModel

	attrs     []Attribute
	attrIndex map[string]int // normalized name -> index into attrs

	referential map[string]bool          // normalized attribute name -> is referential
	identifiers map[string][]string      // identifier name -> ordered declared-case attribute names
	identNames  map[string]string        // normalized identifier name -> declared-case name

	links map[linkKey]*Link

	pool      []*Instance
	poolIndex map[*Instance]int

	cache *lru.Cache[string, *Query]
}

const defaultQueryCacheSize = 256

func newMetaClass(model *MetaModel, kind string) *MetaClass {
	size := defaultQueryCacheSize
	if config.App != nil && config.App.Engine.QueryCacheSize > 0 {
		size = config.App.Engine.QueryCacheSize
	}
	cache, _ := lru.New[string, *Query](size)
	return &MetaClass{
		kind:        kind,
		model:       model,
		attrIndex:   make(map[string]int),
		referential: make(map[string]bool),
		identifiers: make(map[string][]string),
		identNames:  make(map[string]string),
		links:       make(map[linkKey]*Link),
		poolIndex:   make(map[*Instance]int),
		cache:       cache,
	}
}

// Kind returns the class's canonical (as-defined) kind name.
func (c *MetaClass) Kind() string { return c.kind }

// Attributes returns the attribute list in schema order.
func (c *MetaClass) Attributes() []Attribute {
	out := make([]Attribute, len(c.attrs))
	copy(out, c.attrs)
	return out
}

func (c *MetaClass) attrByName(name string) (Attribute, bool) {
	idx, ok := c.attrIndex[ident.Normalize(name)]
	if !ok {
		return Attribute{}, false
	}
	return c.attrs[idx], true
}

// AttrByName is attrByName exported for callers outside the package (the
// IntegrityChecker's uniqueness pass).
func (c *MetaClass) AttrByName(name string) (Attribute, bool) {
	return c.attrByName(name)
}

// AppendAttribute adds an attribute at the end of the schema order.
// Legal only before instances exist for meaningful semantics (spec.md §4.3).
func (c *MetaClass) AppendAttribute(name string, typ TypeName) error {
	return c.InsertAttribute(len(c.attrs), name, typ)
}

// InsertAttribute adds an attribute at position i in the schema order.
func (c *MetaClass) InsertAttribute(i int, name string, typ TypeName) error {
	if err := ValidateType(typ); err != nil {
		return err
	}
	if i < 0 || i > len(c.attrs) {
		i = len(c.attrs)
	}
	attr := Attribute{Name: name, Type: typ}
	c.attrs = append(c.attrs, Attribute{})
	copy(c.attrs[i+1:], c.attrs[i:])
	c.attrs[i] = attr
	c.reindexAttrs()
	c.invalidateCache()
	return nil
}

// DeleteAttribute removes an attribute by name.
func (c *MetaClass) DeleteAttribute(name string) error {
	idx, ok := c.attrIndex[ident.Normalize(name)]
	if !ok {
		return errors.Wrapf(ErrUnknownClass, "attribute %q on class %q", name, c.kind)
	}
	c.attrs = append(c.attrs[:idx], c.attrs[idx+1:]...)
	delete(c.referential, ident.Normalize(name))
	c.reindexAttrs()
	c.invalidateCache()
	return nil
}

func (c *MetaClass) reindexAttrs() {
	c.attrIndex = make(map[string]int, len(c.attrs))
	for i, a := range c.attrs {
		c.attrIndex[ident.Normalize(a.Name)] = i
	}
}

// DefineUniqueIdentifier registers a named index over one or more
// attributes (spec.md §3 "named indices"). IntegrityChecker's uniqueness
// pass (§4.9) groups instances by the tuple of these attributes' values.
func (c *MetaClass) DefineUniqueIdentifier(name string, attrNames ...string) error {
	for _, a := range attrNames {
		if _, ok := c.attrByName(a); !ok {
			return errors.Wrapf(ErrUnknownClass, "identifier %q references unknown attribute %q on %q", name, a, c.kind)
		}
	}
	c.identifiers[name] = append([]string(nil), attrNames...)
	c.identNames[ident.Normalize(name)] = name
	return nil
}

// UniqueIdentifiers returns every named identifier and its ordered
// attribute tuple, for the IntegrityChecker's uniqueness pass.
func (c *MetaClass) UniqueIdentifiers() map[string][]string {
	out := make(map[string][]string, len(c.identifiers))
	for k, v := range c.identifiers {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (c *MetaClass) markReferential(name string) {
	c.referential[ident.Normalize(name)] = true
}

// IsReferential reports whether name is a referential attribute on this
// class (spec.md §3).
func (c *MetaClass) IsReferential(name string) bool {
	return c.referential[ident.Normalize(name)]
}

// AddLink registers an outgoing Link under the composite
// (target-kind, rel-id, phrase) key; duplicates overwrite (spec.md §4.3).
func (c *MetaClass) AddLink(target *MetaClass, relID any, phrase string, conditional, many bool) *Link {
	key := linkKey{
		toKind: ident.Normalize(target.kind),
		relID:  ident.RelIDFrom(relID),
		phrase: ident.Normalize(phrase),
	}
	link := newLink(c, target, key.relID, phrase, conditional, many)
	c.links[key] = link
	return link
}

// FindLink looks up a previously registered outgoing Link by
// (target kind, rel id, phrase), or reports ok=false.
func (c *MetaClass) FindLink(kind string, relID any, phrase string) (*Link, bool) {
	key := linkKey{
		toKind: ident.Normalize(kind),
		relID:  ident.RelIDFrom(relID),
		phrase: ident.Normalize(phrase),
	}
	l, ok := c.links[key]
	return l, ok
}

// New allocates a fresh instance. Every attribute receives a primitive
// default first; positional arguments then bind 1:1 against the full schema
// order (a referential attribute still consumes its positional slot, it is
// just deferred rather than related immediately); named arguments follow,
// also deferring any referential ones. Once all positional and named values
// are applied, a batch-relate pass fires for every deferred referential
// attribute (spec.md §4.3).
func (c *MetaClass) New(positional []any, named map[string]any) (*Instance, error) {
	inst := &Instance{
		class:  c,
		values: make(map[string]any, len(c.attrs)),
		names:  make(map[string]string, len(c.attrs)),
	}
	for _, a := range c.attrs {
		def, err := DefaultValue(a.Type, c.model.idGen)
		if err != nil {
			return nil, err
		}
		inst.setRaw(a.Name, def)
		inst.names[ident.Normalize(a.Name)] = a.Name
	}

	// Positional arguments bind 1:1 against the full schema order, not a
	// compacted non-referential subset: a referential attribute still
	// consumes its positional slot, it is just deferred to the batch-relate
	// pass below instead of being written directly (spec.md §4.3; matches
	// the original source's `zip(self.attributes, args)` over the full
	// attribute list).
	deferred := make(map[string]any)
	for i, v := range positional {
		if i >= len(c.attrs) {
			break
		}
		attr := c.attrs[i]
		coerced, err := Coerce(attr.Type, v)
		if err != nil {
			return nil, errors.Wrapf(err, "positional argument %d for %s", i, c.kind)
		}
		inst.setRaw(attr.Name, coerced)
		if c.IsReferential(attr.Name) {
			deferred[ident.Normalize(attr.Name)] = coerced
		}
	}

	for name, v := range named {
		attr, ok := c.attrByName(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownClass, "attribute %q on class %q", name, c.kind)
		}
		coerced, err := Coerce(attr.Type, v)
		if err != nil {
			return nil, errors.Wrapf(err, "named argument %s for %s", name, c.kind)
		}
		inst.setRaw(attr.Name, coerced)
		if c.IsReferential(name) {
			deferred[ident.Normalize(name)] = coerced
		}
	}

	c.pool = append(c.pool, inst)
	c.poolIndex[inst] = len(c.pool) - 1
	c.invalidateCache()

	if len(deferred) > 0 {
		c.model.batchRelateDeferred(c, inst, deferred)
	}

	return inst, nil
}

// Clone makes a shallow attribute copy of inst and adds it to this class's
// pool (spec.md §4.3).
func (c *MetaClass) Clone(inst *Instance) *Instance {
	dup := inst.Clone()
	c.pool = append(c.pool, dup)
	c.poolIndex[dup] = len(c.pool) - 1
	c.invalidateCache()
	return dup
}

// Delete removes inst from the pool, forgets every Link edge touching it,
// and invalidates the query cache. Fails with ErrDeleteError if inst is not
// in this pool (spec.md §4.3).
func (c *MetaClass) Delete(inst *Instance) error {
	idx, ok := c.poolIndex[inst]
	if !ok {
		return errors.Wrapf(ErrDeleteError, "instance not in %q pool", c.kind)
	}
	c.pool = append(c.pool[:idx], c.pool[idx+1:]...)
	delete(c.poolIndex, inst)
	for i := idx; i < len(c.pool); i++ {
		c.poolIndex[c.pool[i]] = i
	}
	for _, link := range c.links {
		link.forget(inst)
	}
	c.model.forgetFromOtherLinks(c, inst)
	c.invalidateCache()
	return nil
}

// Pool returns a snapshot of the instance pool in insertion order.
func (c *MetaClass) Pool() []*Instance {
	out := make([]*Instance, len(c.pool))
	copy(out, c.pool)
	return out
}

// SelectOneFunc scans the pool for the first instance satisfying pred.
func (c *MetaClass) SelectOneFunc(pred func(*Instance) bool) *Instance {
	for _, inst := range c.pool {
		if pred(inst) {
			return inst
		}
	}
	return nil
}

// SelectManyFunc scans the pool for every instance satisfying pred,
// preserving pool order.
func (c *MetaClass) SelectManyFunc(pred func(*Instance) bool) *QuerySet {
	qs := newQuerySet()
	for _, inst := range c.pool {
		if pred(inst) {
			qs.add(inst)
		}
	}
	return qs
}

// SelectOne scans the pool for the first instance matching the key/value
// predicate, delegating to the cached Query machinery (spec.md §4.3).
func (c *MetaClass) SelectOne(pred map[string]any) (*Instance, error) {
	q, err := c.Query(pred)
	if err != nil {
		return nil, err
	}
	if len(q.matched) > 0 {
		return q.matched[0], nil
	}
	inst, ok := q.Next()
	if !ok {
		return nil, nil
	}
	return inst, nil
}

// SelectMany scans the pool for every instance matching the key/value
// predicate, delegating to the cached Query machinery.
func (c *MetaClass) SelectMany(pred map[string]any) (*QuerySet, error) {
	q, err := c.Query(pred)
	if err != nil {
		return nil, err
	}
	qs := newQuerySet()
	for _, inst := range q.All() {
		qs.add(inst)
	}
	return qs, nil
}

// Query returns the cached Query for pred, constructing and caching one on
// first use (spec.md §4.7). The cache is keyed by the frozen,
// order-independent set of predicate pairs.
func (c *MetaClass) Query(pred map[string]any) (*Query, error) {
	normalized := normalizePred(pred)
	for name, v := range normalized {
		attr, ok := c.attrByName(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownClass, "attribute %q on class %q", name, c.kind)
		}
		coerced, err := Coerce(attr.Type, v)
		if err != nil {
			return nil, errors.Wrapf(err, "predicate attribute %s on %s", name, c.kind)
		}
		normalized[name] = coerced
	}
	key := cacheKey(normalized)
	if q, ok := c.cache.Get(key); ok {
		return q, nil
	}
	q := newQuery(c, c.Pool(), normalized)
	c.cache.Add(key, q)
	return q, nil
}

// Navigate looks up the (kind, rel-id, phrase) Link and yields inst's
// current neighbor set, failing with ErrUnknownLink if no such Link is
// registered (spec.md §4.3).
func (c *MetaClass) Navigate(inst *Instance, kind string, relID any, phrase string) ([]*Instance, error) {
	link, ok := c.FindLink(kind, relID, phrase)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLink, "%s -[%v,%q]-> %s", c.kind, relID, phrase, kind)
	}
	return link.Navigate(inst), nil
}

// invalidateCache discards every cached Query; called by every mutation
// path (new, clone, delete, schema edit, attribute write, including the
// referential-key writes Relate and Unrelate make) per spec.md §5's
// mutation discipline. A relate across an association without keys
// writes no attribute and leaves the cache as it is.
func (c *MetaClass) invalidateCache() {
	c.cache.Purge()
}
