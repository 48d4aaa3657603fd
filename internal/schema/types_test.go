package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaKeepsFirstSeenOrder(t *testing.T) {
	s := New()
	s.AddTable("zebra")
	s.AddTable("alpha")
	s.AddTable("zebra")
	s.AddTable("mike")

	assert.Equal(t, []string{"zebra", "alpha", "mike"}, s.TableNames())
	assert.Equal(t, 3, s.Len())
}

func TestAddTableReturnsExisting(t *testing.T) {
	s := New()
	first := s.AddTable("users")
	first.AddColumn(&Column{Name: "id", Type: "integer"})

	again := s.AddTable("users")
	assert.Same(t, first, again)
	assert.Len(t, again.Columns, 1)
}

func TestAddColumnReplacesInPlace(t *testing.T) {
	table := NewTable("users")
	table.AddColumn(&Column{Name: "id", Type: "text"})
	table.AddColumn(&Column{Name: "email", Type: "varchar"})
	table.AddColumn(&Column{Name: "id", Type: "integer", NotNull: true})

	require.Len(t, table.Columns, 2)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.Equal(t, "integer", table.Columns[0].Type)
	assert.True(t, table.Columns[0].NotNull)
}

func TestPKColumns(t *testing.T) {
	table := NewTable("memberships")
	table.AddColumn(&Column{Name: "id", Type: "integer", AutoPK: true})
	table.AddColumn(&Column{Name: "user_id", Type: "integer"})
	table.Constraints = append(table.Constraints, Constraint{
		Type:    PrimaryKey,
		Columns: []string{"user_id", "group_id"},
	})

	assert.Equal(t, []string{"id", "user_id", "group_id"}, table.PKColumns())
}

func TestRelationshipsDecomposePerColumnPair(t *testing.T) {
	s := New()
	s.AddTable("terms")
	tr := s.AddTable("translations")
	tr.Constraints = append(tr.Constraints, Constraint{
		Type:       ForeignKey,
		Columns:    []string{"src", "dst"},
		RefTable:   "terms",
		RefColumns: []string{"src_id", "dst_id"},
		Deferrable: true,
	})

	rels := s.Relationships()
	require.Len(t, rels, 2)
	assert.Equal(t, Relationship{
		FromTable: "translations", FromColumn: "src",
		ToTable: "terms", ToColumn: "src_id", Deferrable: true,
	}, rels[0])
	assert.Equal(t, Relationship{
		FromTable: "translations", FromColumn: "dst",
		ToTable: "terms", ToColumn: "dst_id", Deferrable: true,
	}, rels[1])
}

func TestRelationshipsBroadcastShortRefList(t *testing.T) {
	s := New()
	tr := s.AddTable("translations")
	tr.Constraints = append(tr.Constraints, Constraint{
		Type:       ForeignKey,
		Columns:    []string{"src", "dst"},
		RefTable:   "terms",
		RefColumns: []string{"id"},
	})

	rels := s.Relationships()
	require.Len(t, rels, 2)
	assert.Equal(t, "id", rels[0].ToColumn)
	assert.Equal(t, "id", rels[1].ToColumn)
}

func TestSequenceOwned(t *testing.T) {
	assert.False(t, (&Sequence{Name: "s"}).Owned())
	assert.False(t, (&Sequence{Name: "s", OwnedTable: "users"}).Owned())
	assert.True(t, (&Sequence{Name: "s", OwnedTable: "users", OwnedColumn: "id"}).Owned())
}
