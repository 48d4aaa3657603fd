// Package compact implements the condensed textual schema notation: a
// writer that serializes the schema model and an independent parser that
// reconstructs the model from the text. The compact file is the only input
// to the stages downstream of compression; the original SQL is never
// reparsed past it.
package compact

import (
	"fmt"
	"io"
	"strings"

	"github.com/dmaes/schemapack/internal/schema"
)

// Writer serializes a schema model into compact notation.
type Writer struct {
	w io.Writer
}

// NewWriter creates a writer targeting w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write emits the whole schema: a header comment, then one block per table
// in first-seen order, blocks separated by a blank line. Column lines keep
// declaration order; constraint and index lines follow grouped as foreign
// keys, unique constraints, primary keys, then indexes.
func (wr *Writer) Write(s *schema.Schema) error {
	header := fmt.Sprintf("-- Schema: %s", s.SchemaName)
	if s.DefaultOwner != "" {
		header += fmt.Sprintf(", Owner: %s", s.DefaultOwner)
	}
	if _, err := fmt.Fprintf(wr.w, "%s\n\n", header); err != nil {
		return err
	}

	for _, table := range s.Tables() {
		if err := wr.writeTable(table); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeTable(t *schema.Table) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", t.Name)

	for _, col := range t.Columns {
		if col.AutoPK {
			fmt.Fprintf(&b, "  %s: PK\n", col.Name)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s", col.Name, col.Type)
		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
		if col.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", col.Default)
		}
		b.WriteString("\n")
	}

	// A multi-column foreign key is decomposed into one line per column
	// pair; a short referenced list broadcasts its first column.
	for _, con := range t.Constraints {
		if con.Type != schema.ForeignKey {
			continue
		}
		for i, local := range con.Columns {
			refCol := ""
			if i < len(con.RefColumns) {
				refCol = con.RefColumns[i]
			} else if len(con.RefColumns) > 0 {
				refCol = con.RefColumns[0]
			}
			fmt.Fprintf(&b, "  FK (%s) > %s(%s)", local, con.RefTable, refCol)
			if con.Deferrable {
				b.WriteString(" DEFERRABLE")
			}
			b.WriteString("\n")
		}
	}
	for _, con := range t.Constraints {
		if con.Type == schema.Unique {
			fmt.Fprintf(&b, "  UNIQUE (%s)\n", strings.Join(con.Columns, ", "))
		}
	}
	for _, con := range t.Constraints {
		if con.Type == schema.PrimaryKey {
			fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n", strings.Join(con.Columns, ", "))
		}
	}

	for _, idx := range t.Indexes {
		fmt.Fprintf(&b, "  IDX (%s)", strings.Join(idx.Columns, ", "))
		if idx.LikeOps {
			b.WriteString(" (LIKE)")
		}
		if idx.Unique {
			b.WriteString(" UNIQUE")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	_, err := io.WriteString(wr.w, b.String())
	return err
}

// Format renders the schema to a string.
func Format(s *schema.Schema) string {
	var b strings.Builder
	_ = NewWriter(&b).Write(s)
	return b.String()
}
