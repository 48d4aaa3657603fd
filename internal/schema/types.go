// Package schema defines the in-memory model shared by every stage of the
// pipeline: the DDL parser and the compact-notation parser both produce it,
// and the statistics engine and artifact writers consume it.
package schema

// ConstraintType discriminates the constraint variants carried by a table.
type ConstraintType string

const (
	PrimaryKey ConstraintType = "PRIMARY KEY"
	ForeignKey ConstraintType = "FOREIGN KEY"
	Unique     ConstraintType = "UNIQUE"
)

// Column represents a table column. Declaration order is carried by the
// owning Table, not by the column itself.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"not_null"`
	Default string `json:"default,omitempty"`
	AutoPK  bool   `json:"auto_pk,omitempty"`
}

// Constraint is a tagged variant over primary key, foreign key and unique
// constraints. RefTable, RefColumns and Deferrable are only meaningful for
// foreign keys.
type Constraint struct {
	Type       ConstraintType `json:"type"`
	Columns    []string       `json:"columns"`
	RefTable   string         `json:"ref_table,omitempty"`
	RefColumns []string       `json:"ref_columns,omitempty"`
	Deferrable bool           `json:"deferrable,omitempty"`
}

// Index represents a secondary index. LikeOps marks indexes built with a
// varchar_pattern_ops/text_pattern_ops operator class; the operator class
// suffix is stripped from the column names before storage.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	LikeOps bool     `json:"like_ops"`
}

// Sequence is a transient record used while parsing DDL. Once a sequence has
// resolved an auto-incrementing primary key it has no further identity.
type Sequence struct {
	Name        string
	OwnedTable  string
	OwnedColumn string
}

// Owned reports whether the sequence has an ownership tuple attached.
func (s *Sequence) Owned() bool {
	return s.OwnedTable != "" && s.OwnedColumn != ""
}

// Relationship is one edge of the foreign-key graph. A multi-column foreign
// key contributes one Relationship per local/referenced column pair.
type Relationship struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
	Deferrable bool   `json:"deferrable"`
}

// Table holds a table's columns in declaration order plus its constraints
// and indexes in the order they were parsed.
type Table struct {
	Name        string       `json:"name"`
	Columns     []*Column    `json:"columns"`
	Constraints []Constraint `json:"constraints"`
	Indexes     []Index      `json:"indexes"`

	byName map[string]*Column
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{
		Name:   name,
		byName: make(map[string]*Column),
	}
}

// AddColumn appends a column, preserving declaration order. Re-adding an
// existing name replaces the stored column in place.
func (t *Table) AddColumn(col *Column) {
	if t.byName == nil {
		t.byName = make(map[string]*Column)
	}
	if existing, ok := t.byName[col.Name]; ok {
		*existing = *col
		return
	}
	t.Columns = append(t.Columns, col)
	t.byName[col.Name] = col
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	if t.byName == nil {
		t.byName = make(map[string]*Column, len(t.Columns))
		for _, c := range t.Columns {
			t.byName[c.Name] = c
		}
	}
	c, ok := t.byName[name]
	return c, ok
}

// PKColumns returns the table's primary key columns: any auto-PK column
// followed by the columns of explicit PRIMARY KEY constraints.
func (t *Table) PKColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.AutoPK {
			cols = append(cols, c.Name)
		}
	}
	for _, con := range t.Constraints {
		if con.Type == PrimaryKey {
			cols = append(cols, con.Columns...)
		}
	}
	return cols
}

// Schema is an ordered collection of tables. Iteration order is the order
// in which tables were first seen, which map iteration alone cannot provide.
type Schema struct {
	tables map[string]*Table
	order  []string

	// DefaultOwner is the first role seen in an ALTER TABLE ... OWNER TO
	// statement, recorded for the compact-notation header.
	DefaultOwner string
	// SchemaName defaults to "public".
	SchemaName string
}

// New creates an empty schema.
func New() *Schema {
	return &Schema{
		tables:     make(map[string]*Table),
		SchemaName: "public",
	}
}

// AddTable registers a table, creating it if it does not exist yet, and
// returns it. Tables are never removed within a run.
func (s *Schema) AddTable(name string) *Table {
	if t, ok := s.tables[name]; ok {
		return t
	}
	t := NewTable(name)
	s.tables[name] = t
	s.order = append(s.order, name)
	return t
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns the tables in first-seen order.
func (s *Schema) Tables() []*Table {
	out := make([]*Table, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tables[name])
	}
	return out
}

// TableNames returns the table names in first-seen order.
func (s *Schema) TableNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	return len(s.order)
}

// TableMap returns the name-to-table mapping, for serialization. Callers
// that need deterministic order must use TableNames.
func (s *Schema) TableMap() map[string]*Table {
	return s.tables
}

// Relationships derives the foreign-key edge set. Each FOREIGN KEY
// constraint yields one edge per local column; when the referenced column
// list is shorter than the local one the first referenced column is
// broadcast to the remaining local columns.
func (s *Schema) Relationships() []Relationship {
	var rels []Relationship
	for _, name := range s.order {
		t := s.tables[name]
		for _, con := range t.Constraints {
			if con.Type != ForeignKey {
				continue
			}
			for i, local := range con.Columns {
				refCol := ""
				if i < len(con.RefColumns) {
					refCol = con.RefColumns[i]
				} else if len(con.RefColumns) > 0 {
					refCol = con.RefColumns[0]
				}
				rels = append(rels, Relationship{
					FromTable:  t.Name,
					FromColumn: local,
					ToTable:    con.RefTable,
					ToColumn:   refCol,
					Deferrable: con.Deferrable,
				})
			}
		}
	}
	return rels
}
