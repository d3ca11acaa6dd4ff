package integrity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oaofoa/metacore/internal/integrity"
	"github.com/oaofoa/metacore/metamodel"
)

func buildModel(t *testing.T) (*metamodel.MetaModel, *metamodel.MetaClass, *metamodel.MetaClass) {
	t.Helper()
	m := metamodel.NewMetaModel(nil)

	person, err := m.DefineClass("Person")
	require.NoError(t, err)
	require.NoError(t, person.AppendAttribute("id", metamodel.INTEGER))
	require.NoError(t, person.AppendAttribute("name", metamodel.STRING))
	require.NoError(t, person.DefineUniqueIdentifier("ID_person", "id"))

	dog, err := m.DefineClass("Dog")
	require.NoError(t, err)
	require.NoError(t, dog.AppendAttribute("name", metamodel.STRING))
	require.NoError(t, dog.AppendAttribute("owner_id", metamodel.INTEGER))

	_, err = m.DefineAssociation(1,
		metamodel.AssociationEnd{Class: dog, Phrase: "owned by", Conditional: true, Many: false, Keys: []string{"owner_id"}},
		metamodel.AssociationEnd{Class: person, Phrase: "owns", Conditional: true, Many: true, Keys: []string{"id"}},
	)
	require.NoError(t, err)
	return m, person, dog
}

func TestCheckConsistentModel(t *testing.T) {
	m, person, dog := buildModel(t)
	p, err := person.New(nil, map[string]any{"id": 1, "name": "A"})
	require.NoError(t, err)
	d, err := dog.New(nil, map[string]any{"name": "Rex"})
	require.NoError(t, err)
	_, err = m.Relate(d, p, 1, "owned by")
	require.NoError(t, err)

	report := integrity.New(m).Check()
	assert.True(t, report.Consistent())
	assert.Empty(t, report.Findings)
}

func TestCheckFindsDuplicateIdentifier(t *testing.T) {
	m, person, _ := buildModel(t)
	_, err := person.New(nil, map[string]any{"id": 1, "name": "A"})
	require.NoError(t, err)
	_, err = person.New(nil, map[string]any{"id": 1, "name": "B"})
	require.NoError(t, err)

	report := integrity.New(m).Check()
	require.False(t, report.Consistent())
	require.Len(t, report.Findings, 1)
	assert.Equal(t, integrity.KindUniqueness, report.Findings[0].Kind)
	assert.Equal(t, "Person", report.Findings[0].Class)
}

func TestCheckAllowsNullIdentifierDuplicates(t *testing.T) {
	m, person, _ := buildModel(t)
	// INTEGER has no null value, so the null case is exercised through an
	// identifier over the STRING attribute left empty on both instances.
	require.NoError(t, person.DefineUniqueIdentifier("ID_name", "name"))
	_, err := person.New(nil, map[string]any{"id": 1})
	require.NoError(t, err)
	_, err = person.New(nil, map[string]any{"id": 2})
	require.NoError(t, err)

	report := integrity.New(m).Check()
	assert.True(t, report.Consistent())
}

func TestCheckFindsUnlinkedMandatoryAssociation(t *testing.T) {
	m := metamodel.NewMetaModel(nil)
	person, err := m.DefineClass("Person")
	require.NoError(t, err)
	require.NoError(t, person.AppendAttribute("id", metamodel.INTEGER))

	dog, err := m.DefineClass("Dog")
	require.NoError(t, err)
	require.NoError(t, dog.AppendAttribute("owner_id", metamodel.INTEGER))

	_, err = m.DefineAssociation(1,
		metamodel.AssociationEnd{Class: dog, Phrase: "owned by", Conditional: false, Many: false, Keys: []string{"owner_id"}},
		metamodel.AssociationEnd{Class: person, Phrase: "owns", Conditional: true, Many: true, Keys: []string{"id"}},
	)
	require.NoError(t, err)

	_, err = dog.New(nil, nil)
	require.NoError(t, err)

	report := integrity.New(m).Check()
	require.False(t, report.Consistent())
	assert.Equal(t, integrity.KindAssociation, report.Findings[0].Kind)
}
