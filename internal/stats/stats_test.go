package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmaes/schemapack/internal/config"
	"github.com/dmaes/schemapack/internal/schema"
)

func usersOrders() *schema.Schema {
	s := schema.New()

	users := s.AddTable("users")
	users.AddColumn(&schema.Column{Name: "id", Type: "integer", NotNull: true})
	users.AddColumn(&schema.Column{Name: "email", Type: "varchar", NotNull: true})

	orders := s.AddTable("orders")
	orders.AddColumn(&schema.Column{Name: "id", Type: "integer", NotNull: true})
	orders.AddColumn(&schema.Column{Name: "user_id", Type: "integer", NotNull: true})
	orders.Constraints = append(orders.Constraints, schema.Constraint{
		Type:       schema.ForeignKey,
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	})

	return s
}

func TestComputeUsersOrders(t *testing.T) {
	snap := Compute(usersOrders(), config.Default().Statistics)

	assert.Equal(t, 2, snap.TableCount)
	assert.Equal(t, 4, snap.TotalColumns)
	assert.Equal(t, 1, snap.TotalForeignKeys)
	assert.Equal(t, 4, snap.TotalRequiredColumns)
	assert.Equal(t, 0, snap.TotalNullableColumns)

	assert.Equal(t, Degree{In: 1, Out: 0}, snap.Degrees["users"])
	assert.Equal(t, Degree{In: 0, Out: 1}, snap.Degrees["orders"])
	assert.Equal(t, []string{"users"}, snap.RootTables)
	assert.Equal(t, []string{"orders"}, snap.LeafTables)

	assert.Equal(t, 2.0, snap.AvgColumnsPerTable)
	assert.Equal(t, 0.5, snap.AvgFKsPerTable)

	assert.Equal(t, []TypeCount{
		{Type: "integer", Count: 3},
		{Type: "varchar", Count: 1},
	}, snap.DataTypeDistribution)
}

func TestComputeDegreeInvariants(t *testing.T) {
	s := usersOrders()

	items := s.AddTable("order_items")
	items.AddColumn(&schema.Column{Name: "order_id", Type: "integer", NotNull: true})
	items.AddColumn(&schema.Column{Name: "parent_id", Type: "integer"})
	items.Constraints = append(items.Constraints,
		schema.Constraint{
			Type: schema.ForeignKey, Columns: []string{"order_id"},
			RefTable: "orders", RefColumns: []string{"id"},
		},
		schema.Constraint{
			Type: schema.ForeignKey, Columns: []string{"parent_id"},
			RefTable: "order_items", RefColumns: []string{"order_id"},
		},
	)

	snap := Compute(s, config.Default().Statistics)
	rels := s.Relationships()

	var inSum, outSum int
	for name, deg := range snap.Degrees {
		inSum += deg.In
		outSum += deg.Out

		var wantIn, wantOut int
		for _, rel := range rels {
			if rel.ToTable == name {
				wantIn++
			}
			if rel.FromTable == name {
				wantOut++
			}
		}
		assert.Equal(t, wantIn, deg.In, "in-degree of %s", name)
		assert.Equal(t, wantOut, deg.Out, "out-degree of %s", name)
	}
	assert.Equal(t, len(rels), inSum)
	assert.Equal(t, len(rels), outSum)

	assert.Equal(t, []string{"order_items"}, snap.SelfReferencingTables)
}

func TestComputeIdempotence(t *testing.T) {
	s := usersOrders()
	cfg := config.Default().Statistics

	first := Compute(s, cfg)
	second := Compute(s, cfg)
	assert.Equal(t, first, second)
}

func TestComputeMultigraphCountsEveryEdge(t *testing.T) {
	s := schema.New()
	s.AddTable("users").AddColumn(&schema.Column{Name: "id", Type: "integer"})

	audits := s.AddTable("audits")
	audits.AddColumn(&schema.Column{Name: "actor_id", Type: "integer"})
	audits.AddColumn(&schema.Column{Name: "subject_id", Type: "integer"})
	audits.Constraints = append(audits.Constraints,
		schema.Constraint{
			Type: schema.ForeignKey, Columns: []string{"actor_id"},
			RefTable: "users", RefColumns: []string{"id"},
		},
		schema.Constraint{
			Type: schema.ForeignKey, Columns: []string{"subject_id"},
			RefTable: "users", RefColumns: []string{"id"},
		},
	)

	snap := Compute(s, config.Default().Statistics)

	// Two FKs to the same table are two edges, not one.
	assert.Equal(t, 2, snap.Degrees["users"].In)
	assert.Equal(t, 2, snap.Degrees["audits"].Out)
	assert.Equal(t, 2, snap.TotalForeignKeys)
}

func TestComputePKClassification(t *testing.T) {
	s := schema.New()

	auto := s.AddTable("auto")
	auto.AddColumn(&schema.Column{Name: "id", Type: "integer", AutoPK: true})

	composite := s.AddTable("composite")
	composite.AddColumn(&schema.Column{Name: "a", Type: "integer"})
	composite.AddColumn(&schema.Column{Name: "b", Type: "integer"})
	composite.Constraints = append(composite.Constraints, schema.Constraint{
		Type: schema.PrimaryKey, Columns: []string{"a", "b"},
	})

	bare := s.AddTable("bare")
	bare.AddColumn(&schema.Column{Name: "x", Type: "text"})

	snap := Compute(s, config.Default().Statistics)

	assert.Equal(t, []string{"composite"}, snap.TablesWithCompositePK)
	assert.Equal(t, []string{"bare"}, snap.TablesWithoutPK)

	// Auto-PK columns count as required even without an explicit NOT NULL.
	assert.Equal(t, 1, snap.TotalRequiredColumns)
	assert.Equal(t, 3, snap.TotalNullableColumns)
}

func TestComputeRankingTruncationAndTies(t *testing.T) {
	s := schema.New()
	for _, tc := range []struct {
		name string
		cols int
	}{
		{"alpha", 3}, {"bravo", 3}, {"charlie", 1}, {"delta", 5},
	} {
		table := s.AddTable(tc.name)
		for i := 0; i < tc.cols; i++ {
			table.AddColumn(&schema.Column{Name: string(rune('a' + i)), Type: "text"})
		}
	}

	cfg := config.Default().Statistics
	cfg.MaxDisplayedItems = 2
	snap := Compute(s, cfg)

	assert.Equal(t, []TableRank{
		{Table: "delta", Count: 5},
		{Table: "alpha", Count: 3},
	}, snap.LargestTables)
	assert.Equal(t, []TableRank{
		{Table: "bravo", Count: 3},
		{Table: "charlie", Count: 1},
	}, snap.SmallestTables)
}

func TestComputeSmallestEmptyWhenAllDisplayed(t *testing.T) {
	snap := Compute(usersOrders(), config.Default().Statistics)

	assert.Len(t, snap.LargestTables, 2)
	assert.Empty(t, snap.SmallestTables)
}
