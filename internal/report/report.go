// Package report writes the structured artifacts consumed by downstream
// reporting and visualization tools: the full context JSON (model +
// relationships + statistics), a standalone statistics JSON, and a
// human-readable markdown summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmaes/schemapack/internal/schema"
	"github.com/dmaes/schemapack/internal/stats"
)

const generatorVersion = "1.0.0"

// Metadata records provenance for a context artifact.
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	SourceSchema     string    `json:"source_schema"`
	GeneratorVersion string    `json:"generator_version"`
}

// Context is the full structured output: the table mapping, the flat
// relationship list, and the statistics snapshot.
type Context struct {
	Metadata      Metadata                 `json:"metadata"`
	Statistics    *stats.Snapshot          `json:"statistics"`
	Tables        map[string]*schema.Table `json:"tables"`
	Relationships []schema.Relationship    `json:"relationships"`
}

// Writer writes artifacts into an output directory, creating it on demand.
type Writer struct {
	OutputDir string
}

// NewWriter creates an artifact writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{OutputDir: dir}
}

// WriteArtifacts writes <base>_context.json and <base>_stats.json, where
// base is derived from the source file name. It returns both paths.
func (w *Writer) WriteArtifacts(s *schema.Schema, snap *stats.Snapshot, sourceFile string) (string, string, error) {
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))

	ctx := Context{
		Metadata: Metadata{
			GeneratedAt:      time.Now(),
			SourceSchema:     sourceFile,
			GeneratorVersion: generatorVersion,
		},
		Statistics:    snap,
		Tables:        s.TableMap(),
		Relationships: s.Relationships(),
	}

	contextPath := filepath.Join(w.OutputDir, base+"_context.json")
	if err := writeJSON(contextPath, ctx); err != nil {
		return "", "", err
	}

	statsPath := filepath.Join(w.OutputDir, base+"_stats.json")
	if err := writeJSON(statsPath, snap); err != nil {
		return "", "", err
	}

	return contextPath, statsPath, nil
}

// WriteSummary renders the markdown statistics summary to summary.md.
func (w *Writer) WriteSummary(snap *stats.Snapshot, maxItems int) (string, error) {
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(w.OutputDir, "summary.md")
	if err := os.WriteFile(path, []byte(RenderSummary(snap, maxItems)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RenderSummary produces a markdown digest of a statistics snapshot,
// suitable for prompt injection or quick human review.
func RenderSummary(snap *stats.Snapshot, maxItems int) string {
	limit := maxItems / 2
	if limit < 3 {
		limit = 3
	}

	var b strings.Builder
	b.WriteString("## Schema Statistics Summary\n")
	fmt.Fprintf(&b, "- **Total Tables**: %d\n", snap.TableCount)
	fmt.Fprintf(&b, "- **Total Columns**: %d\n", snap.TotalColumns)
	fmt.Fprintf(&b, "- **Total Foreign Key Relationships**: %d\n", snap.TotalForeignKeys)
	fmt.Fprintf(&b, "- **Average Columns per Table**: %g\n", snap.AvgColumnsPerTable)
	fmt.Fprintf(&b, "- **Average Foreign Keys per Table**: %g\n", snap.AvgFKsPerTable)
	b.WriteString("\n")

	if len(snap.LargestTables) > 0 {
		b.WriteString("## Table Size Distribution\n")
		b.WriteString("**Largest Tables (by column count):**\n")
		for _, r := range head(snap.LargestTables, limit) {
			fmt.Fprintf(&b, "- %s: %d columns\n", r.Table, r.Count)
		}
		b.WriteString("\n")
	}

	if len(snap.MostReferencedTables) > 0 {
		b.WriteString("## Most Connected Tables\n")
		b.WriteString("**Most Referenced Tables (incoming FKs):**\n")
		for _, r := range head(snap.MostReferencedTables, limit) {
			fmt.Fprintf(&b, "- %s: %d incoming foreign keys\n", r.Table, r.Count)
		}
		b.WriteString("\n")
	}

	if len(snap.DataTypeDistribution) > 0 {
		b.WriteString("## Data Type Distribution\n")
		for _, tc := range headTypes(snap.DataTypeDistribution, maxItems) {
			fmt.Fprintf(&b, "- %s: %d columns\n", tc.Type, tc.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Table Categories\n")
	for _, bucket := range snap.Categories {
		if len(bucket.Tables) > 0 {
			fmt.Fprintf(&b, "- **%s**: %d tables\n", titleCase(bucket.Name), len(bucket.Tables))
		}
	}

	return b.String()
}

func head(ranks []stats.TableRank, n int) []stats.TableRank {
	if len(ranks) > n {
		return ranks[:n]
	}
	return ranks
}

func headTypes(types []stats.TypeCount, n int) []stats.TypeCount {
	if len(types) > n {
		return types[:n]
	}
	return types
}

func titleCase(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
