// Package ddl parses extracted PostgreSQL DDL into the schema model.
//
// The parser is a line-oriented state machine, not a SQL grammar: statements
// are recognized by prefix and keyword dispatch and their pieces recovered
// with regex capture. A line that fails its sub-pattern is skipped with a
// diagnostic and parsing continues with the next line; no malformed
// statement ever aborts the parse.
package ddl

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dmaes/schemapack/internal/schema"
)

// Diagnostic describes a recoverable parse problem: a structural miss or a
// reference to a table that has not been seen.
type Diagnostic struct {
	Line   string `json:"line"`
	Table  string `json:"table,omitempty"`
	Reason string `json:"reason"`
}

var (
	reCreateTable    = regexp.MustCompile(`^CREATE TABLE (?:ONLY )?(?:(\w+)\.)?(\w+)`)
	reCreateSequence = regexp.MustCompile(`^CREATE SEQUENCE (?:(\w+)\.)?(\w+)`)
	reSequenceOwned  = regexp.MustCompile(`ALTER SEQUENCE (?:(\w+)\.)?(\w+) OWNED BY (?:(\w+)\.)?(\w+)\.(\w+)`)
	reAlterTable     = regexp.MustCompile(`^ALTER TABLE (?:ONLY )?(?:(\w+)\.)?(\w+)`)
	reOwnerTo        = regexp.MustCompile(`OWNER TO (\w+)`)
	rePrimaryKey     = regexp.MustCompile(`PRIMARY KEY \(([^)]+)\)`)
	reForeignKey     = regexp.MustCompile(`FOREIGN KEY \(([^)]+)\) REFERENCES (?:(\w+)\.)?(\w+)\s?\(([^)]+)\)`)
	reUnique         = regexp.MustCompile(`UNIQUE \(([^)]+)\)`)
	reCreateIndex    = regexp.MustCompile(`^CREATE (UNIQUE )?INDEX (\w+) ON (?:(\w+)\.)?(\w+)`)
	reIndexColumns   = regexp.MustCompile(`USING \w+ \(([^)]+)\)`)
	reDefaultValue   = regexp.MustCompile(`(?i)DEFAULT\s+([^,\s]+)`)
	rePatternOps     = regexp.MustCompile(`\s+(?:varchar|text)_pattern_ops`)
)

// typeRules collapse verbose PostgreSQL type spellings to short forms. The
// rules are ordered: "character varying" must rewrite before "character".
var typeRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`character varying(\(\d+\))?`), "varchar"},
	{regexp.MustCompile(`character(\(\d+\))?`), "char"},
	{regexp.MustCompile(`timestamp with time zone`), "timestamptz"},
	{regexp.MustCompile(`timestamp without time zone`), "timestamp"},
	{regexp.MustCompile(`time with time zone`), "timetz"},
	{regexp.MustCompile(`time without time zone`), "time"},
}

// inlineConstraintKeywords mark column-block lines the parser does not
// handle. Dump tools restate these via ALTER TABLE ADD CONSTRAINT, which is
// where they are picked up.
var inlineConstraintKeywords = []string{"CONSTRAINT", "PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "CHECK"}

// integerTypes are the types an auto-PK column may keep; anything else is
// forced to integer during the auto-PK rewrite.
var integerTypes = map[string]bool{
	"integer":   true,
	"bigint":    true,
	"smallint":  true,
	"serial":    true,
	"bigserial": true,
}

type parserState int

const (
	stateTopLevel parserState = iota
	stateTableBody
)

// Parser consumes extracted DDL lines and builds the schema model. It owns
// the in-progress model exclusively; a Parser is not safe for concurrent
// use and is meant for a single Parse call.
type Parser struct {
	log zerolog.Logger

	state    parserState
	schema   *schema.Schema
	current  *schema.Table
	seqs     map[string]*schema.Sequence
	seqOrder []string

	diags []Diagnostic
}

// NewParser creates a parser that reports skipped lines through log.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse runs a single linear pass over the extracted DDL lines and returns
// the schema model plus the diagnostics for every skipped construct.
func (p *Parser) Parse(lines []string) (*schema.Schema, []Diagnostic) {
	p.state = stateTopLevel
	p.schema = schema.New()
	p.current = nil
	p.seqs = make(map[string]*schema.Sequence)
	p.seqOrder = nil
	p.diags = nil

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if p.state == stateTableBody {
			p.parseBodyLine(line)
			continue
		}

		switch {
		case strings.HasPrefix(line, "CREATE TABLE"):
			p.openTable(line)

		case strings.HasPrefix(line, "CREATE SEQUENCE"):
			p.registerSequence(line)

		case strings.Contains(line, "SEQUENCE") && strings.Contains(line, "OWNED BY"):
			p.attachSequenceOwner(line)

		case strings.HasPrefix(line, "ALTER TABLE"):
			if strings.Contains(line, "ADD CONSTRAINT") {
				p.parseConstraint(line)
				break
			}
			if m := reOwnerTo.FindStringSubmatch(line); m != nil && p.schema.DefaultOwner == "" {
				p.schema.DefaultOwner = m[1]
				break
			}
			// ALTER TABLE statements are often split after the table name;
			// join with the ADD CONSTRAINT continuation and skip it.
			if i+1 < len(lines) && strings.Contains(lines[i+1], "ADD CONSTRAINT") {
				p.parseConstraint(line + " " + strings.TrimSpace(lines[i+1]))
				i++
			}

		case strings.HasPrefix(line, "CREATE ") && strings.Contains(line, "INDEX"):
			p.parseIndex(line)
		}
	}

	p.resolveAutoPK()
	return p.schema, p.diags
}

func (p *Parser) skip(line, table, reason string) {
	p.diags = append(p.diags, Diagnostic{Line: line, Table: table, Reason: reason})
	p.log.Debug().Str("table", table).Str("reason", reason).Str("line", line).Msg("skipped DDL line")
}

func (p *Parser) openTable(line string) {
	m := reCreateTable.FindStringSubmatch(line)
	if m == nil {
		p.skip(line, "", "unparseable CREATE TABLE")
		return
	}
	p.current = p.schema.AddTable(m[2])
	p.state = stateTableBody
}

func (p *Parser) parseBodyLine(line string) {
	if line == ");" || strings.HasPrefix(line, ");") {
		p.state = stateTopLevel
		p.current = nil
		return
	}
	if line == "" || strings.HasPrefix(line, "--") {
		return
	}
	p.parseColumn(strings.TrimSuffix(line, ","))
}

func (p *Parser) parseColumn(line string) {
	upper := strings.ToUpper(line)
	for _, kw := range inlineConstraintKeywords {
		if strings.Contains(upper, kw) {
			p.skip(line, p.current.Name, "inline constraint not supported")
			return
		}
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		p.skip(line, p.current.Name, "malformed column definition")
		return
	}

	name := strings.Trim(fields[0], `"`)
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	col := &schema.Column{
		Name:    name,
		Type:    NormalizeType(rest),
		NotNull: strings.Contains(upper, "NOT NULL"),
	}
	if m := reDefaultValue.FindStringSubmatch(line); m != nil {
		col.Default = m[1]
	}
	p.current.AddColumn(col)
}

// NormalizeType applies the ordered type substitutions to a column
// definition remainder and returns its first token as the declared type.
func NormalizeType(rest string) string {
	for _, rule := range typeRules {
		rest = rule.re.ReplaceAllString(rest, rule.repl)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (p *Parser) registerSequence(line string) {
	m := reCreateSequence.FindStringSubmatch(line)
	if m == nil {
		p.skip(line, "", "unparseable CREATE SEQUENCE")
		return
	}
	name := m[2]
	if _, ok := p.seqs[name]; !ok {
		p.seqs[name] = &schema.Sequence{Name: name}
		p.seqOrder = append(p.seqOrder, name)
	}
}

func (p *Parser) attachSequenceOwner(line string) {
	m := reSequenceOwned.FindStringSubmatch(line)
	if m == nil {
		p.skip(line, "", "unparseable ALTER SEQUENCE OWNED BY")
		return
	}
	seq, ok := p.seqs[m[2]]
	if !ok {
		p.skip(line, "", "OWNED BY references unknown sequence")
		return
	}
	seq.OwnedTable = m[4]
	seq.OwnedColumn = m[5]
}

func (p *Parser) parseConstraint(line string) {
	m := reAlterTable.FindStringSubmatch(line)
	if m == nil {
		p.skip(line, "", "unparseable ALTER TABLE")
		return
	}
	tableName := m[2]
	table, ok := p.schema.Table(tableName)
	if !ok {
		p.skip(line, tableName, "constraint references unknown table")
		return
	}

	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "PRIMARY KEY"):
		pk := rePrimaryKey.FindStringSubmatch(line)
		if pk == nil {
			p.skip(line, tableName, "unparseable PRIMARY KEY constraint")
			return
		}
		table.Constraints = append(table.Constraints, schema.Constraint{
			Type:    schema.PrimaryKey,
			Columns: splitColumns(pk[1]),
		})

	case strings.Contains(upper, "FOREIGN KEY"):
		fk := reForeignKey.FindStringSubmatch(line)
		if fk == nil {
			p.skip(line, tableName, "unparseable FOREIGN KEY constraint")
			return
		}
		table.Constraints = append(table.Constraints, schema.Constraint{
			Type:       schema.ForeignKey,
			Columns:    splitColumns(fk[1]),
			RefTable:   fk[3],
			RefColumns: splitColumns(fk[4]),
			Deferrable: strings.Contains(upper, "DEFERRABLE"),
		})

	case strings.Contains(upper, "UNIQUE"):
		uq := reUnique.FindStringSubmatch(line)
		if uq == nil {
			p.skip(line, tableName, "unparseable UNIQUE constraint")
			return
		}
		table.Constraints = append(table.Constraints, schema.Constraint{
			Type:    schema.Unique,
			Columns: splitColumns(uq[1]),
		})

	default:
		p.skip(line, tableName, "unrecognized constraint kind")
	}
}

func (p *Parser) parseIndex(line string) {
	m := reCreateIndex.FindStringSubmatch(line)
	if m == nil {
		p.skip(line, "", "unparseable CREATE INDEX")
		return
	}
	unique := m[1] != ""
	indexName := m[2]
	tableName := m[4]

	table, ok := p.schema.Table(tableName)
	if !ok {
		p.skip(line, tableName, "index references unknown table")
		return
	}

	cols := reIndexColumns.FindStringSubmatch(line)
	if cols == nil {
		p.skip(line, tableName, "index column list not found")
		return
	}

	columns := splitColumns(cols[1])
	likeOps := false
	for i, col := range columns {
		if rePatternOps.MatchString(col) {
			likeOps = true
			columns[i] = rePatternOps.ReplaceAllString(col, "")
		}
	}

	table.Indexes = append(table.Indexes, schema.Index{
		Name:    indexName,
		Columns: columns,
		Unique:  unique,
		LikeOps: likeOps,
	})
}

// resolveAutoPK rewrites single-column primary keys backed by an owned
// sequence: the constraint is removed and the column marked auto-PK with an
// integer-family type. The rewrite is one-way; the compact notation encodes
// these columns as "col: PK" only.
func (p *Parser) resolveAutoPK() {
	for _, table := range p.schema.Tables() {
		remaining := table.Constraints[:0]
		for _, con := range table.Constraints {
			if con.Type == schema.PrimaryKey && len(con.Columns) == 1 && p.sequenceOwns(table.Name, con.Columns[0]) {
				if col, ok := table.Column(con.Columns[0]); ok {
					col.AutoPK = true
					if !integerTypes[col.Type] {
						col.Type = "integer"
					}
					continue
				}
			}
			remaining = append(remaining, con)
		}
		table.Constraints = remaining
	}
}

func (p *Parser) sequenceOwns(table, column string) bool {
	for _, name := range p.seqOrder {
		seq := p.seqs[name]
		if seq.Owned() && seq.OwnedTable == table && seq.OwnedColumn == column {
			return true
		}
	}
	return false
}

func splitColumns(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.Trim(trimmed, `"`))
		}
	}
	return out
}
