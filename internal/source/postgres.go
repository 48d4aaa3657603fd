// Package source acquires a schema model from a live PostgreSQL database
// instead of a dump file. It is an alternative front end to the pipeline:
// the model it produces feeds the same compact writer and statistics engine,
// and the parsing core never depends on it.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmaes/schemapack/internal/ddl"
	"github.com/dmaes/schemapack/internal/schema"
)

// Client manages the connection to PostgreSQL.
type Client struct {
	conn *pgx.Conn
}

// Connect opens and pings a connection.
func Connect(ctx context.Context, connString string) (*Client, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Introspector reads catalog metadata into the schema model.
type Introspector struct {
	client     *Client
	schemaName string
}

// NewIntrospector creates an introspector for the given schema name
// ("public" when empty).
func NewIntrospector(client *Client, schemaName string) *Introspector {
	if schemaName == "" {
		schemaName = "public"
	}
	return &Introspector{client: client, schemaName: schemaName}
}

// Introspect builds the full model for the schema: ordered tables and
// columns, constraint variants, indexes, and sequence-backed auto-PK
// columns resolved the same way the dump parser resolves them.
func (in *Introspector) Introspect(ctx context.Context) (*schema.Schema, error) {
	s := schema.New()
	s.SchemaName = in.schemaName

	names, err := in.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	for _, name := range names {
		table := s.AddTable(name)
		if err := in.fillColumns(ctx, table); err != nil {
			return nil, fmt.Errorf("failed to introspect columns of %s: %w", name, err)
		}
		if err := in.fillConstraints(ctx, table); err != nil {
			return nil, fmt.Errorf("failed to introspect constraints of %s: %w", name, err)
		}
		if err := in.fillIndexes(ctx, table); err != nil {
			return nil, fmt.Errorf("failed to introspect indexes of %s: %w", name, err)
		}
	}

	return s, nil
}

func (in *Introspector) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := in.client.conn.Query(ctx, query, in.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (in *Introspector) fillColumns(ctx context.Context, table *schema.Table) error {
	query := `
		SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
		       c.character_maximum_length
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`
	rows, err := in.client.conn.Query(ctx, query, in.schemaName, table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, dataType, nullable string
			defaultVal               *string
			charMaxLength            *int
		)
		if err := rows.Scan(&name, &dataType, &nullable, &defaultVal, &charMaxLength); err != nil {
			return err
		}

		col := &schema.Column{
			Name:    name,
			Type:    ddl.NormalizeType(dataType),
			NotNull: nullable == "NO",
		}
		if defaultVal != nil {
			if strings.HasPrefix(*defaultVal, "nextval(") {
				// Sequence-backed column; resolved against the primary key
				// below, the same one-way rewrite the dump parser applies.
				col.Default = ""
				col.AutoPK = true
				if !strings.Contains(col.Type, "int") {
					col.Type = "integer"
				}
			} else if fields := strings.Fields(*defaultVal); len(fields) > 0 {
				col.Default = fields[0]
			}
		}
		table.AddColumn(col)
	}
	return rows.Err()
}

func (in *Introspector) fillConstraints(ctx context.Context, table *schema.Table) error {
	query := `
		SELECT tc.constraint_name, tc.constraint_type, tc.is_deferrable,
		       kcu.column_name,
		       ccu.table_name AS ref_table, ccu.column_name AS ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
			AND tc.constraint_type = 'FOREIGN KEY'
		WHERE tc.table_schema = $1 AND tc.table_name = $2
			AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY', 'UNIQUE')
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`
	rows, err := in.client.conn.Query(ctx, query, in.schemaName, table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	type rawConstraint struct {
		typ        schema.ConstraintType
		columns    []string
		refTable   string
		refColumns []string
		deferrable bool
	}
	order := []string{}
	grouped := map[string]*rawConstraint{}

	for rows.Next() {
		var (
			conName, conType, deferrable, column string
			refTable, refColumn                  *string
		)
		if err := rows.Scan(&conName, &conType, &deferrable, &column, &refTable, &refColumn); err != nil {
			return err
		}

		rc, ok := grouped[conName]
		if !ok {
			rc = &rawConstraint{
				typ:        schema.ConstraintType(conType),
				deferrable: deferrable == "YES",
			}
			grouped[conName] = rc
			order = append(order, conName)
		}
		rc.columns = append(rc.columns, column)
		if refTable != nil {
			rc.refTable = *refTable
		}
		if refColumn != nil {
			rc.refColumns = append(rc.refColumns, *refColumn)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range order {
		rc := grouped[name]

		// A single-column primary key on an auto-PK column is implied by
		// the column itself and not stored as a constraint.
		if rc.typ == schema.PrimaryKey && len(rc.columns) == 1 {
			if col, ok := table.Column(rc.columns[0]); ok && col.AutoPK {
				continue
			}
		}
		// Auto-PK columns outside a primary key lose the flag again.
		if rc.typ == schema.PrimaryKey {
			for _, c := range table.Columns {
				if c.AutoPK && !contains(rc.columns, c.Name) {
					c.AutoPK = false
				}
			}
		}

		table.Constraints = append(table.Constraints, schema.Constraint{
			Type:       rc.typ,
			Columns:    rc.columns,
			RefTable:   rc.refTable,
			RefColumns: rc.refColumns,
			Deferrable: rc.deferrable,
		})
	}
	return nil
}

func (in *Introspector) fillIndexes(ctx context.Context, table *schema.Table) error {
	query := `
		SELECT i.relname AS index_name,
		       ix.indisunique,
		       pg_get_indexdef(ix.indexrelid) AS indexdef,
		       array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
			AND NOT EXISTS (
				SELECT 1 FROM pg_constraint c WHERE c.conindid = ix.indexrelid
			)
		GROUP BY i.relname, ix.indisunique, ix.indexrelid
		ORDER BY i.relname
	`
	rows, err := in.client.conn.Query(ctx, query, in.schemaName, table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx      schema.Index
			indexdef string
		)
		if err := rows.Scan(&idx.Name, &idx.Unique, &indexdef, &idx.Columns); err != nil {
			return err
		}
		idx.LikeOps = strings.Contains(indexdef, "_pattern_ops")
		table.Indexes = append(table.Indexes, idx)
	}
	return rows.Err()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
