package compact

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dmaes/schemapack/internal/schema"
)

// Diagnostic describes a compact line the parser could not apply. Compact
// files may be hand-edited, so unlike the DDL parser every skip is surfaced
// at warn level with its table context.
type Diagnostic struct {
	Line   string `json:"line"`
	Table  string `json:"table,omitempty"`
	Reason string `json:"reason"`
}

var (
	reCompactFK      = regexp.MustCompile(`FK \(([^)]+)\) > (\w+)\(([^)]+)\)`)
	reCompactUnique  = regexp.MustCompile(`UNIQUE \(([^)]+)\)`)
	reCompactPK      = regexp.MustCompile(`PRIMARY KEY \(([^)]+)\)`)
	reCompactIndex   = regexp.MustCompile(`IDX \(([^)]+)\)`)
	reCompactDefault = regexp.MustCompile(`(?i)DEFAULT\s+([^,\s]+)`)
)

// Parser reconstructs a schema model from compact notation, independently
// of the code that wrote it.
type Parser struct {
	log zerolog.Logger

	schema  *schema.Schema
	current *schema.Table
	diags   []Diagnostic
}

// NewParser creates a compact-notation parser reporting through log.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// ParseFile parses the compact file at path. A missing file is fatal for
// the run: the caller gets an error, never a silently empty model.
func (p *Parser) ParseFile(path string) (*schema.Schema, []Diagnostic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read compact schema %s: %w", path, err)
	}
	s, diags := p.Parse(string(data))
	return s, diags, nil
}

// Parse parses compact notation text. Malformed lines never abort the
// parse; each is logged with its table context and skipped.
func (p *Parser) Parse(text string) (*schema.Schema, []Diagnostic) {
	p.schema = schema.New()
	p.current = nil
	p.diags = nil

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		// A non-indented line ending in ":" opens a new table context.
		if !strings.HasPrefix(line, " ") && strings.HasSuffix(trimmed, ":") {
			p.current = p.schema.AddTable(strings.TrimSuffix(trimmed, ":"))
			continue
		}

		if p.current == nil {
			p.warn(trimmed, "", "line outside any table block")
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "FK ("):
			p.parseForeignKey(trimmed)
		case strings.HasPrefix(trimmed, "UNIQUE ("):
			p.parseUnique(trimmed)
		case strings.HasPrefix(trimmed, "PRIMARY KEY ("):
			p.parsePrimaryKey(trimmed)
		case strings.HasPrefix(trimmed, "IDX ("):
			p.parseIndex(trimmed)
		case strings.Contains(trimmed, ":"):
			p.parseColumn(trimmed)
		default:
			p.warn(trimmed, p.current.Name, "unrecognized line")
		}
	}

	return p.schema, p.diags
}

func (p *Parser) warn(line, table, reason string) {
	p.diags = append(p.diags, Diagnostic{Line: line, Table: table, Reason: reason})
	p.log.Warn().Str("table", table).Str("reason", reason).Str("line", line).Msg("skipped compact line")
}

func (p *Parser) parseColumn(line string) {
	name, def, ok := strings.Cut(line, ":")
	if !ok {
		p.warn(line, p.current.Name, "missing column separator")
		return
	}
	name = strings.Trim(strings.TrimSpace(name), `"`)
	def = strings.TrimSpace(def)

	// "col: PK" is the auto-increment shorthand: an integer primary key
	// column with no backing sequence needed.
	if def == "PK" {
		p.current.AddColumn(&schema.Column{
			Name:    name,
			Type:    "integer",
			NotNull: true,
			AutoPK:  true,
		})
		return
	}

	fields := strings.Fields(def)
	if len(fields) == 0 {
		p.warn(line, p.current.Name, "column has no type")
		return
	}

	col := &schema.Column{
		Name:    name,
		Type:    fields[0],
		NotNull: strings.Contains(strings.ToUpper(def), "NOT NULL"),
	}
	if m := reCompactDefault.FindStringSubmatch(def); m != nil {
		col.Default = m[1]
	}
	p.current.AddColumn(col)
}

func (p *Parser) parseForeignKey(line string) {
	m := reCompactFK.FindStringSubmatch(line)
	if m == nil {
		p.warn(line, p.current.Name, "malformed FK line")
		return
	}
	p.current.Constraints = append(p.current.Constraints, schema.Constraint{
		Type:       schema.ForeignKey,
		Columns:    []string{strings.TrimSpace(m[1])},
		RefTable:   m[2],
		RefColumns: []string{strings.TrimSpace(m[3])},
		Deferrable: strings.Contains(strings.ToUpper(line), "DEFERRABLE"),
	})
}

func (p *Parser) parseUnique(line string) {
	m := reCompactUnique.FindStringSubmatch(line)
	if m == nil {
		p.warn(line, p.current.Name, "malformed UNIQUE line")
		return
	}
	p.current.Constraints = append(p.current.Constraints, schema.Constraint{
		Type:    schema.Unique,
		Columns: splitList(m[1]),
	})
}

func (p *Parser) parsePrimaryKey(line string) {
	m := reCompactPK.FindStringSubmatch(line)
	if m == nil {
		p.warn(line, p.current.Name, "malformed PRIMARY KEY line")
		return
	}
	p.current.Constraints = append(p.current.Constraints, schema.Constraint{
		Type:    schema.PrimaryKey,
		Columns: splitList(m[1]),
	})
}

func (p *Parser) parseIndex(line string) {
	m := reCompactIndex.FindStringSubmatch(line)
	if m == nil {
		p.warn(line, p.current.Name, "malformed IDX line")
		return
	}
	upper := strings.ToUpper(line)
	p.current.Indexes = append(p.current.Indexes, schema.Index{
		Columns: splitList(m[1]),
		Unique:  strings.Contains(upper, "UNIQUE"),
		LikeOps: strings.Contains(upper, "(LIKE)"),
	})
}

func splitList(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.Trim(trimmed, `"`))
		}
	}
	return out
}
