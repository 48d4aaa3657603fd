package ddl

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaes/schemapack/internal/schema"
)

func parse(t *testing.T, lines []string) (*schema.Schema, []Diagnostic) {
	t.Helper()
	return NewParser(zerolog.Nop()).Parse(lines)
}

func TestParseCreateTable(t *testing.T) {
	s, diags := parse(t, []string{
		"CREATE TABLE public.users (",
		"    id integer NOT NULL,",
		"    email character varying(255) NOT NULL,",
		"    nickname character varying(40),",
		"    created_at timestamp with time zone DEFAULT now(),",
		`    "group" text`,
		");",
	})

	assert.Empty(t, diags)
	require.Equal(t, 1, s.Len())

	users, ok := s.Table("users")
	require.True(t, ok)
	require.Len(t, users.Columns, 5)

	assert.Equal(t, &schema.Column{Name: "id", Type: "integer", NotNull: true}, users.Columns[0])
	assert.Equal(t, &schema.Column{Name: "email", Type: "varchar", NotNull: true}, users.Columns[1])
	assert.Equal(t, &schema.Column{Name: "nickname", Type: "varchar"}, users.Columns[2])
	assert.Equal(t, &schema.Column{Name: "created_at", Type: "timestamptz", Default: "now()"}, users.Columns[3])
	assert.Equal(t, &schema.Column{Name: "group", Type: "text"}, users.Columns[4])
}

func TestParseSkipsInlineConstraints(t *testing.T) {
	s, diags := parse(t, []string{
		"CREATE TABLE users (",
		"    id integer NOT NULL,",
		"    CONSTRAINT users_pkey PRIMARY KEY (id)",
		");",
	})

	users, ok := s.Table("users")
	require.True(t, ok)
	assert.Len(t, users.Columns, 1)
	assert.Empty(t, users.Constraints)

	require.Len(t, diags, 1)
	assert.Equal(t, "users", diags[0].Table)
	assert.Equal(t, "inline constraint not supported", diags[0].Reason)
}

func TestParseConstraints(t *testing.T) {
	s, diags := parse(t, []string{
		"CREATE TABLE users (",
		"    id integer NOT NULL,",
		"    email character varying(255)",
		");",
		"CREATE TABLE orders (",
		"    id integer NOT NULL,",
		"    user_id integer NOT NULL,",
		"    number text",
		");",
		"ALTER TABLE ONLY public.users ADD CONSTRAINT users_pkey PRIMARY KEY (id);",
		"ALTER TABLE ONLY public.users ADD CONSTRAINT users_email_key UNIQUE (email);",
		"ALTER TABLE ONLY public.orders ADD CONSTRAINT orders_user_fk FOREIGN KEY (user_id) REFERENCES public.users(id) DEFERRABLE INITIALLY DEFERRED;",
	})

	assert.Empty(t, diags)

	users, _ := s.Table("users")
	require.Len(t, users.Constraints, 2)
	assert.Equal(t, schema.Constraint{Type: schema.PrimaryKey, Columns: []string{"id"}}, users.Constraints[0])
	assert.Equal(t, schema.Constraint{Type: schema.Unique, Columns: []string{"email"}}, users.Constraints[1])

	orders, _ := s.Table("orders")
	require.Len(t, orders.Constraints, 1)
	assert.Equal(t, schema.Constraint{
		Type:       schema.ForeignKey,
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
		Deferrable: true,
	}, orders.Constraints[0])
}

func TestParseJoinsSplitAlterTable(t *testing.T) {
	s, diags := parse(t, []string{
		"CREATE TABLE users (",
		"    id integer NOT NULL",
		");",
		"ALTER TABLE ONLY public.users",
		"    ADD CONSTRAINT users_pkey PRIMARY KEY (id);",
	})

	assert.Empty(t, diags)
	users, _ := s.Table("users")
	require.Len(t, users.Constraints, 1)
	assert.Equal(t, schema.PrimaryKey, users.Constraints[0].Type)
}

func TestParseAutoPKNormalization(t *testing.T) {
	s, diags := parse(t, []string{
		"CREATE TABLE users (",
		"    id integer NOT NULL,",
		"    email character varying(255)",
		");",
		"CREATE SEQUENCE public.users_id_seq",
		"ALTER SEQUENCE public.users_id_seq OWNED BY public.users.id;",
		"ALTER TABLE ONLY public.users ADD CONSTRAINT users_pkey PRIMARY KEY (id);",
	})

	assert.Empty(t, diags)

	users, _ := s.Table("users")
	id, ok := users.Column("id")
	require.True(t, ok)
	assert.True(t, id.AutoPK)
	assert.Equal(t, "integer", id.Type)
	assert.Empty(t, users.Constraints, "resolved primary key must be removed")
	assert.Equal(t, []string{"id"}, users.PKColumns())
}

func TestParseAutoPKForcesIntegerType(t *testing.T) {
	s, _ := parse(t, []string{
		"CREATE TABLE events (",
		"    id numeric(10,0) NOT NULL",
		");",
		"CREATE SEQUENCE events_id_seq",
		"ALTER SEQUENCE events_id_seq OWNED BY events.id;",
		"ALTER TABLE ONLY events ADD CONSTRAINT events_pkey PRIMARY KEY (id);",
	})

	events, _ := s.Table("events")
	id, _ := events.Column("id")
	assert.True(t, id.AutoPK)
	assert.Equal(t, "integer", id.Type)
}

func TestParseAutoPKKeepsBigint(t *testing.T) {
	s, _ := parse(t, []string{
		"CREATE TABLE events (",
		"    id bigint NOT NULL",
		");",
		"CREATE SEQUENCE events_id_seq",
		"ALTER SEQUENCE events_id_seq OWNED BY events.id;",
		"ALTER TABLE ONLY events ADD CONSTRAINT events_pkey PRIMARY KEY (id);",
	})

	events, _ := s.Table("events")
	id, _ := events.Column("id")
	assert.True(t, id.AutoPK)
	assert.Equal(t, "bigint", id.Type)
}

func TestParseCompositePKStaysConstraint(t *testing.T) {
	s, _ := parse(t, []string{
		"CREATE TABLE memberships (",
		"    user_id integer NOT NULL,",
		"    group_id integer NOT NULL",
		");",
		"ALTER TABLE ONLY memberships ADD CONSTRAINT memberships_pkey PRIMARY KEY (user_id, group_id);",
	})

	m, _ := s.Table("memberships")
	require.Len(t, m.Constraints, 1)
	assert.Equal(t, []string{"user_id", "group_id"}, m.Constraints[0].Columns)
	assert.Equal(t, []string{"user_id", "group_id"}, m.PKColumns())
}

func TestParseDanglingConstraintIsDiagnosed(t *testing.T) {
	s, diags := parse(t, []string{
		"ALTER TABLE ONLY ghosts ADD CONSTRAINT ghosts_pkey PRIMARY KEY (id);",
	})

	assert.Equal(t, 0, s.Len())
	require.Len(t, diags, 1)
	assert.Equal(t, "ghosts", diags[0].Table)
	assert.Equal(t, "constraint references unknown table", diags[0].Reason)
}

func TestParseIndexes(t *testing.T) {
	s, diags := parse(t, []string{
		"CREATE TABLE users (",
		"    email character varying(255),",
		"    name text",
		");",
		"CREATE INDEX idx_users_name ON public.users USING btree (name);",
		"CREATE UNIQUE INDEX ux_users_email ON public.users USING btree (email varchar_pattern_ops);",
		"CREATE INDEX idx_ghost ON public.ghosts USING btree (id);",
	})

	require.Len(t, diags, 1)
	assert.Equal(t, "index references unknown table", diags[0].Reason)

	users, _ := s.Table("users")
	require.Len(t, users.Indexes, 2)
	assert.Equal(t, schema.Index{Name: "idx_users_name", Columns: []string{"name"}}, users.Indexes[0])
	assert.Equal(t, schema.Index{
		Name:    "ux_users_email",
		Columns: []string{"email"},
		Unique:  true,
		LikeOps: true,
	}, users.Indexes[1])
}

func TestParseOwnerTo(t *testing.T) {
	s, _ := parse(t, []string{
		"CREATE TABLE users (",
		"    id integer",
		");",
		"ALTER TABLE public.users OWNER TO app;",
		"ALTER TABLE public.users OWNER TO other;",
	})

	assert.Equal(t, "app", s.DefaultOwner, "only the first owner is recorded")
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"character varying(255) NOT NULL", "varchar"},
		{"character varying", "varchar"},
		{"character(2)", "char"},
		{"timestamp with time zone DEFAULT now()", "timestamptz"},
		{"timestamp without time zone", "timestamp"},
		{"time with time zone", "timetz"},
		{"time without time zone", "time"},
		{"integer NOT NULL", "integer"},
		{"numeric(10,2)", "numeric(10,2)"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeType(tt.in), "input: %q", tt.in)
	}
}
