package metamodel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dogPersonModel builds the scenario 1/2/4/5/6 schema: Dog(name, owner_id)
// 1C — owned by — 1 Person(id, name) via R1.
func dogPersonModel(t *testing.T) (m *MetaModel, person, dog *MetaClass) {
	t.Helper()
	m = NewMetaModel(nil)

	person, err := m.DefineClass("Person")
	require.NoError(t, err)
	require.NoError(t, person.AppendAttribute("id", INTEGER))
	require.NoError(t, person.AppendAttribute("name", STRING))
	require.NoError(t, person.DefineUniqueIdentifier("ID_person", "id"))

	dog, err = m.DefineClass("Dog")
	require.NoError(t, err)
	require.NoError(t, dog.AppendAttribute("name", STRING))
	require.NoError(t, dog.AppendAttribute("owner_id", INTEGER))

	_, err = m.DefineAssociation(1,
		AssociationEnd{Class: dog, Phrase: "owned by", Conditional: true, Many: false, Keys: []string{"owner_id"}},
		AssociationEnd{Class: person, Phrase: "owns", Conditional: true, Many: true, Keys: []string{"id"}},
	)
	require.NoError(t, err)
	return m, person, dog
}

func TestScenario1_RelateNavigateUnrelate(t *testing.T) {
	m, person, dog := dogPersonModel(t)

	p, err := person.New(nil, map[string]any{"id": 42, "name": "A"})
	require.NoError(t, err)
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)

	ok, err := m.Relate(d, p, 1, "owned by")
	require.NoError(t, err)
	assert.True(t, ok)

	neighbors, err := dog.Navigate(d, "Person", 1, "owned by")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Same(t, p, neighbors[0])
	assert.EqualValues(t, 42, d.MustGet("owner_id"))

	ok, err = m.Unrelate(d, p, 1, "owned by")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 0, d.MustGet("owner_id"))
}

func TestScenario2_BatchRelateOnConstruction(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 42, "name": "A"})
	require.NoError(t, err)

	d2, err := dog.New(nil, map[string]any{"name": "Spot", "owner_id": 42})
	require.NoError(t, err)

	neighbors, err := dog.Navigate(d2, "Person", 1, "owned by")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Same(t, p, neighbors[0])
	_ = m
}

func TestScenario3_SortReflexive(t *testing.T) {
	m := NewMetaModel(nil)
	person, err := m.DefineClass("Person")
	require.NoError(t, err)
	require.NoError(t, person.AppendAttribute("name", STRING))

	_, err = m.DefineAssociation(2,
		AssociationEnd{Class: person, Phrase: "child", Conditional: true, Many: false},
		AssociationEnd{Class: person, Phrase: "parent", Conditional: true, Many: false},
	)
	require.NoError(t, err)

	p1, _ := person.New(nil, map[string]any{"name": "p1"})
	p2, _ := person.New(nil, map[string]any{"name": "p2"})
	p3, _ := person.New(nil, map[string]any{"name": "p3"})

	_, err = m.Relate(p2, p1, 2, "child")
	require.NoError(t, err)
	_, err = m.Relate(p3, p2, 2, "child")
	require.NoError(t, err)

	set := newQuerySet()
	set.add(p3)
	set.add(p1)
	set.add(p2)

	ordered, err := SortReflexive(set, 2, "child")
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Same(t, p1, ordered[0])
	assert.Same(t, p2, ordered[1])
	assert.Same(t, p3, ordered[2])
}

func TestScenario4_CacheCoherenceOnDelete(t *testing.T) {
	_, _, dog := dogPersonModel(t)
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)

	qs, err := dog.SelectMany(map[string]any{"name": "Rex"})
	require.NoError(t, err)
	assert.Len(t, qs.Slice(), 1)

	require.NoError(t, dog.Delete(d))

	qs, err = dog.SelectMany(map[string]any{"name": "Rex"})
	require.NoError(t, err)
	assert.Empty(t, qs.Slice())
}

func TestScenario5_RelateIsIdempotent(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 42, "name": "A"})
	require.NoError(t, err)
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)

	ok1, err := m.Relate(d, p, 1, "owned by")
	require.NoError(t, err)
	ok2, err := m.Relate(d, p, 1, "owned by")
	require.NoError(t, err)
	assert.True(t, ok1)
	assert.True(t, ok2)

	neighbors, err := dog.Navigate(d, "Person", 1, "owned by")
	require.NoError(t, err)
	assert.Len(t, neighbors, 1)
}

func TestScenario6_NavigateOneReturnsFirstByInsertionOrder(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 1, "name": "Owner"})
	require.NoError(t, err)

	var dogs []*Instance
	for _, name := range []string{"A", "B", "C"} {
		d, err := dog.New(nil, map[string]any{"name": name})
		require.NoError(t, err)
		_, err = m.Relate(d, p, 1, "owned by")
		require.NoError(t, err)
		dogs = append(dogs, d)
	}

	neighbors, err := person.Navigate(p, "Dog", 1, "owns")
	require.NoError(t, err)
	require.Len(t, neighbors, 3)
	assert.Same(t, dogs[0], neighbors[0])
}

func TestCardinalityEnforcement(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p1, _ := person.New(nil, map[string]any{"id": 1, "name": "A"})
	p2, _ := person.New(nil, map[string]any{"id": 2, "name": "B"})
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)

	ok, err := m.Relate(d, p1, 1, "owned by")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = m.Relate(d, p2, 1, "owned by")
	assert.ErrorIs(t, err, ErrRelateError)
}

func TestRelateUnrelateRoundTrip(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, _ := person.New(nil, map[string]any{"id": 42, "name": "A"})
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)

	before := d.MustGet("owner_id")
	_, err = m.Relate(d, p, 1, "owned by")
	require.NoError(t, err)
	_, err = m.Unrelate(d, p, 1, "owned by")
	require.NoError(t, err)

	assert.Equal(t, before, d.MustGet("owner_id"))
}

func TestQueryLaziness(t *testing.T) {
	_, _, dog := dogPersonModel(t)
	for _, name := range []string{"Rex", "Rex", "Rex"} {
		_, err := dog.New(nil, map[string]any{"name": name})
		require.NoError(t, err)
	}

	q1, err := dog.Query(map[string]any{"name": "Rex"})
	require.NoError(t, err)
	first, ok := q1.Next()
	require.True(t, ok)

	q2, err := dog.Query(map[string]any{"name": "Rex"})
	require.NoError(t, err)
	all := q2.All()
	require.Len(t, all, 3)
	assert.Same(t, first, all[0])
}

func TestCaseInsensitiveLookups(t *testing.T) {
	m, _, _ := dogPersonModel(t)
	c, ok := m.Class("dog")
	require.True(t, ok)
	assert.Equal(t, "Dog", c.Kind())

	d, err := c.New(nil, map[string]any{"NAME": "Rex"})
	require.NoError(t, err)
	assert.Equal(t, "Rex", d.MustGet("name"))
}

func TestNewBindsPositionalArgumentsAgainstFullSchemaOrder(t *testing.T) {
	_, _, dog := dogPersonModel(t)

	d, err := dog.New([]any{"Rex", 42}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Rex", d.MustGet("name"))

	neighbors, err := dog.Navigate(d, "Person", 1, "owned by")
	require.NoError(t, err)
	require.Empty(t, neighbors, "owner_id's positional value is deferred to batch-relate, and no Person with id 42 exists to relate to")
	assert.EqualValues(t, 42, d.MustGet("owner_id"))
}

func TestNewPositionalReferentialAttributeBatchRelates(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 42, "name": "A"})
	require.NoError(t, err)

	d, err := dog.New([]any{"Rex", 42}, nil)
	require.NoError(t, err)

	neighbors, err := dog.Navigate(d, "Person", 1, "owned by")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Same(t, p, neighbors[0])
	_ = m
}

func TestWhereEq(t *testing.T) {
	pred := WhereEq("name", "Rex", "owner_id", 42)
	assert.Equal(t, map[string]any{"name": "Rex", "owner_id": 42}, pred)
	assert.Panics(t, func() { WhereEq("name") })
	assert.Panics(t, func() { WhereEq(1, "Rex") })
}

func TestWhereEqWithSelectMany(t *testing.T) {
	_, _, dog := dogPersonModel(t)
	_, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)
	_, err = dog.New(nil, map[string]any{"name": "Spot"})
	require.NoError(t, err)

	qs, err := dog.SelectMany(WhereEq("name", "Rex"))
	require.NoError(t, err)
	require.Len(t, qs.Slice(), 1)
	assert.Equal(t, "Rex", qs.One().MustGet("name"))
}

func TestNavChainOneAndMany(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 1, "name": "Owner"})
	require.NoError(t, err)

	var dogs []*Instance
	for _, name := range []string{"A", "B", "C"} {
		d, err := dog.New(nil, map[string]any{"name": name})
		require.NoError(t, err)
		_, err = m.Relate(d, p, 1, "owned by")
		require.NoError(t, err)
		dogs = append(dogs, d)
	}

	many, err := FromOne(m, p).Nav("Dog", 1, "owns").Many()
	require.NoError(t, err)
	require.Len(t, many.Slice(), 3)
	assert.Same(t, dogs[0], many.Slice()[0])

	one, err := FromOne(m, dogs[1]).Nav("Person", 1, "owned by").One()
	require.NoError(t, err)
	assert.Same(t, p, one)

	fromMany, err := FromMany(m, many).Nav("Person", 1, "owned by").Many()
	require.NoError(t, err)
	require.Len(t, fromMany.Slice(), 1, "all three dogs navigate back to the same owner")
	assert.Same(t, p, fromMany.Slice()[0])
}

func TestQuerySetUnionAndDifference(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 1, "name": "Owner"})
	require.NoError(t, err)
	a, err := dog.New(nil, map[string]any{"name": "A"})
	require.NoError(t, err)
	b, err := dog.New(nil, map[string]any{"name": "B"})
	require.NoError(t, err)
	_, err = m.Relate(a, p, 1, "owned by")
	require.NoError(t, err)

	left := newQuerySet()
	left.add(a)
	right := newQuerySet()
	right.add(a)
	right.add(b)

	assert.Len(t, left.Union(right).Slice(), 2)
	assert.Empty(t, left.Difference(right).Slice())
	assert.Len(t, right.Difference(left).Slice(), 1)
}

func TestNavigateSubtype(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 7, "name": "Owner"})
	require.NoError(t, err)
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)
	_, err = m.Relate(d, p, 1, "owned by")
	require.NoError(t, err)

	got, err := NavigateSubtype(d, 1)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestSortReflexiveDerivesOpposingPhrase(t *testing.T) {
	m := NewMetaModel(nil)
	person, err := m.DefineClass("Person")
	require.NoError(t, err)
	require.NoError(t, person.AppendAttribute("name", STRING))

	_, err = m.DefineAssociation(2,
		AssociationEnd{Class: person, Phrase: "child", Conditional: true, Many: false},
		AssociationEnd{Class: person, Phrase: "parent", Conditional: true, Many: false},
	)
	require.NoError(t, err)

	p1, _ := person.New(nil, map[string]any{"name": "p1"})
	p2, _ := person.New(nil, map[string]any{"name": "p2"})
	_, err = m.Relate(p2, p1, 2, "child")
	require.NoError(t, err)

	set := newQuerySet()
	set.add(p2)
	set.add(p1)

	ordered, err := SortReflexive(set, 2, "child")
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Same(t, p1, ordered[0])
	assert.Same(t, p2, ordered[1])
}

func TestClone(t *testing.T) {
	_, person, _ := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 1, "name": "Original"})
	require.NoError(t, err)

	dup := person.Clone(p)
	assert.NotSame(t, p, dup)
	assert.Equal(t, p.MustGet("id"), dup.MustGet("id"))
	assert.Equal(t, p.MustGet("name"), dup.MustGet("name"))

	require.NoError(t, dup.Set("name", "Changed"))
	assert.Equal(t, "Original", p.MustGet("name"), "clone is a shallow copy, not a shared reference")

	assert.Len(t, person.Pool(), 2)
}

func TestDefineDerivedAssociationRecordsWithoutBatchRelate(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 1, "name": "A"})
	require.NoError(t, err)
	d, err := dog.New(nil, map[string]any{"name": "Rex", "owner_id": 1})
	require.NoError(t, err)
	_, err = m.Unrelate(d, p, 1, "owned by")
	require.NoError(t, err)

	require.Empty(t, m.derived)
	m.DefineDerivedAssociation(9, "dog-breed-registry")
	assert.Equal(t, []string{"R9:dog-breed-registry"}, m.derived)

	neighbors, err := dog.Navigate(d, "Person", 1, "owned by")
	require.NoError(t, err)
	assert.Empty(t, neighbors, "DefineDerivedAssociation is a recording-only no-op, it must not batch-relate")
}

func TestPersistWritesSchemaPoolAndAssociations(t *testing.T) {
	m, person, dog := dogPersonModel(t)
	p, err := person.New(nil, map[string]any{"id": 1, "name": "A"})
	require.NoError(t, err)
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)
	_, err = m.Relate(d, p, 1, "owned by")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Persist(&buf))

	out := buf.String()
	assert.Contains(t, out, "CLASS Person")
	assert.Contains(t, out, "CLASS Dog")
	assert.Contains(t, out, "ATTR name STRING")
	assert.Contains(t, out, "IDENT ID_person [id]")
	assert.Contains(t, out, "ASSOC R1")
}
