// Package stats computes foreign-key graph metrics and descriptive
// aggregates over a parsed schema model. Computation never mutates the
// model; running it twice on the same model yields identical snapshots.
package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/dmaes/schemapack/internal/config"
	"github.com/dmaes/schemapack/internal/schema"
)

// TableRank is one entry of a ranking list.
type TableRank struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// TypeCount is one entry of the data-type frequency histogram.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Degree holds the FK multigraph degrees of one table. Edges are counted
// per FK column pair, not deduplicated by target.
type Degree struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// CategoryBucket assigns tables to one keyword category.
type CategoryBucket struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

// Snapshot is the immutable statistics result.
type Snapshot struct {
	TableCount           int `json:"table_count"`
	TotalColumns         int `json:"total_columns"`
	TotalForeignKeys     int `json:"total_foreign_keys"`
	TotalRequiredColumns int `json:"total_required_columns"`
	TotalNullableColumns int `json:"total_nullable_columns"`

	DataTypeDistribution []TypeCount `json:"data_type_distribution"`

	LargestTables        []TableRank `json:"largest_tables"`
	SmallestTables       []TableRank `json:"smallest_tables"`
	MostOutgoingFKs      []TableRank `json:"most_outgoing_fks"`
	MostReferencedTables []TableRank `json:"most_referenced_tables"`

	Degrees map[string]Degree `json:"degrees"`

	// RootTables have no outgoing foreign keys; LeafTables are never
	// referenced by one.
	RootTables []string `json:"tables_without_outgoing_fks"`
	LeafTables []string `json:"never_referenced_tables"`

	TotalUniqueConstraints int `json:"total_unique_constraints"`
	TotalIndexes           int `json:"total_indexes"`

	TablesWithCompositePK []string `json:"tables_with_composite_pk"`
	TablesWithoutPK       []string `json:"tables_without_pk"`
	SelfReferencingTables []string `json:"self_referencing_tables"`

	AvgColumnsPerTable float64 `json:"avg_columns_per_table"`
	AvgFKsPerTable     float64 `json:"avg_fks_per_table"`

	Categories []CategoryBucket `json:"table_categories"`
}

// Compute builds a statistics snapshot from the model and its derived
// relationship set.
func Compute(s *schema.Schema, cfg config.Statistics) *Snapshot {
	snap := &Snapshot{
		Degrees: make(map[string]Degree),
	}

	tables := s.Tables()
	rels := s.Relationships()

	snap.TableCount = len(tables)
	snap.TotalForeignKeys = len(rels)

	typeCounts := make(map[string]int)
	for _, t := range tables {
		snap.TotalColumns += len(t.Columns)
		for _, col := range t.Columns {
			typeCounts[strings.ToLower(col.Type)]++
			if col.NotNull || col.AutoPK {
				snap.TotalRequiredColumns++
			} else {
				snap.TotalNullableColumns++
			}
		}
		for _, con := range t.Constraints {
			if con.Type == schema.Unique {
				snap.TotalUniqueConstraints++
			}
		}
		snap.TotalIndexes += len(t.Indexes)
	}
	snap.DataTypeDistribution = sortTypeCounts(typeCounts)

	// FK multigraph degrees.
	out := make(map[string]int)
	in := make(map[string]int)
	selfSeen := make(map[string]bool)
	for _, rel := range rels {
		out[rel.FromTable]++
		in[rel.ToTable]++
		if rel.FromTable == rel.ToTable && !selfSeen[rel.FromTable] {
			selfSeen[rel.FromTable] = true
			snap.SelfReferencingTables = append(snap.SelfReferencingTables, rel.FromTable)
		}
	}

	for _, t := range tables {
		snap.Degrees[t.Name] = Degree{In: in[t.Name], Out: out[t.Name]}
		if out[t.Name] == 0 {
			snap.RootTables = append(snap.RootTables, t.Name)
		}
		if in[t.Name] == 0 {
			snap.LeafTables = append(snap.LeafTables, t.Name)
		}

		pk := t.PKColumns()
		switch {
		case len(pk) > 1:
			snap.TablesWithCompositePK = append(snap.TablesWithCompositePK, t.Name)
		case len(pk) == 0:
			snap.TablesWithoutPK = append(snap.TablesWithoutPK, t.Name)
		}
	}

	n := cfg.MaxDisplayedItems
	sizes := make([]TableRank, 0, len(tables))
	for _, t := range tables {
		sizes = append(sizes, TableRank{Table: t.Name, Count: len(t.Columns)})
	}
	sortRanks(sizes)
	snap.LargestTables = truncate(sizes, n)
	// The bottom-N list stays empty when every table already appears in
	// the top-N, avoiding an overlapping slice.
	if len(sizes) > n {
		snap.SmallestTables = append([]TableRank(nil), sizes[len(sizes)-n:]...)
	} else {
		snap.SmallestTables = []TableRank{}
	}

	snap.MostOutgoingFKs = truncate(rankDegrees(out), n)
	snap.MostReferencedTables = truncate(rankDegrees(in), n)

	if snap.TableCount > 0 {
		snap.AvgColumnsPerTable = round2(float64(snap.TotalColumns) / float64(snap.TableCount))
		snap.AvgFKsPerTable = round2(float64(snap.TotalForeignKeys) / float64(snap.TableCount))
	}

	snap.Categories = Categorize(s.TableNames(), cfg.Categories)
	return snap
}

func sortTypeCounts(counts map[string]int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for typ, count := range counts {
		out = append(out, TypeCount{Type: typ, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func rankDegrees(degrees map[string]int) []TableRank {
	out := make([]TableRank, 0, len(degrees))
	for table, count := range degrees {
		out = append(out, TableRank{Table: table, Count: count})
	}
	sortRanks(out)
	return out
}

// sortRanks orders by count descending, breaking ties by table name so the
// same model always serializes to the same artifact.
func sortRanks(ranks []TableRank) {
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Count != ranks[j].Count {
			return ranks[i].Count > ranks[j].Count
		}
		return ranks[i].Table < ranks[j].Table
	})
}

func truncate(ranks []TableRank, n int) []TableRank {
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return append([]TableRank(nil), ranks...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
