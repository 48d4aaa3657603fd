// Package extract filters a PostgreSQL schema dump down to its
// schema-defining lines, dropping bulk-copy payloads and insert statements.
// It performs no structural parsing.
package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Report summarizes an extraction pass. It is observational only.
type Report struct {
	TotalLines       int `json:"total_lines"`
	KeptLines        int `json:"kept_lines"`
	TableCount       int `json:"table_count"`
	SchemaStatements int `json:"schema_statements"`
}

// Ratio returns the fraction of input lines kept.
func (r Report) Ratio() float64 {
	if r.TotalLines == 0 {
		return 0
	}
	return float64(r.KeptLines) / float64(r.TotalLines)
}

// schemaKeywords is the allow-list of statement prefixes counted as
// schema-defining for the report. Lines are kept by default; this list only
// feeds diagnostics.
var schemaKeywords = []string{
	"CREATE TABLE",
	"CREATE SEQUENCE",
	"CREATE INDEX",
	"CREATE UNIQUE INDEX",
	"CREATE VIEW",
	"CREATE SCHEMA",
	"CREATE FUNCTION",
	"CREATE TRIGGER",
	"CREATE TYPE",
	"CREATE DOMAIN",
	"CREATE EXTENSION",
	"ALTER TABLE",
	"ALTER SEQUENCE",
	"ALTER INDEX",
	"COMMENT ON",
	"DROP ",
	"SET ",
	"SELECT PG_CATALOG.SET_CONFIG",
}

// IsSchemaStatement reports whether the line starts a statement from the
// schema allow-list. Comments and blank lines are not schema statements but
// are still kept by Filter.
func IsSchemaStatement(line string) bool {
	upper := strings.ToUpper(strings.TrimSpace(line))
	for _, kw := range schemaKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// Filter returns the subsequence of lines that is schema-defining,
// preserving order, comments and whitespace of kept lines. COPY blocks are
// dropped through their \. end-of-data marker; INSERT statements are
// dropped through their terminating semicolon.
func Filter(lines []string) ([]string, Report) {
	report := Report{TotalLines: len(lines)}
	kept := make([]string, 0, len(lines))

	inCopy := false
	inInsert := false

	for _, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))

		if inCopy {
			if upper == `\.` {
				inCopy = false
			}
			continue
		}
		if inInsert {
			if strings.HasSuffix(upper, ";") {
				inInsert = false
			}
			continue
		}

		if strings.HasPrefix(upper, "COPY ") {
			inCopy = true
			continue
		}
		if strings.HasPrefix(upper, "INSERT INTO") {
			// A single-line INSERT ends on the same line it starts.
			if !strings.HasSuffix(upper, ";") {
				inInsert = true
			}
			continue
		}

		kept = append(kept, line)
		if strings.HasPrefix(upper, "CREATE TABLE") {
			report.TableCount++
		}
		if IsSchemaStatement(line) {
			report.SchemaStatements++
		}
	}

	report.KeptLines = len(kept)
	return kept, report
}

// ReadLines reads a dump file as UTF-8 with a single Latin-1 fallback
// attempt before giving up, and splits it into lines.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !utf8.Valid(data) {
		decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if decErr != nil {
			return nil, fmt.Errorf("failed to decode %s as UTF-8 or Latin-1: %w", path, decErr)
		}
		data = decoded
	}

	return SplitLines(string(data)), nil
}

// SplitLines splits text into lines without retaining line terminators.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	// A trailing newline produces one empty phantom line; drop it.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
