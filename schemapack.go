// Package schemapack turns PostgreSQL schema dumps into a compact,
// LLM-friendly textual encoding and a structured, statistics-annotated
// schema model — without ever connecting to a database.
//
// The pipeline has four stages, each consuming the previous one's output:
//
//  1. Extract: filter the raw dump down to schema-defining lines,
//     dropping COPY payloads and INSERT statements.
//  2. Compress: parse the extracted DDL into the schema model and
//     serialize it as compact notation.
//  3. Parse: re-parse the compact notation independently; past this point
//     the compact file is the sole source of truth.
//  4. Analyze: compute foreign-key graph metrics and descriptive
//     aggregates, written out as JSON artifacts plus a markdown summary.
//
// # Quick Start
//
//	result, err := schemapack.Run(schemapack.RunOptions{
//		InputFile: "dump.sql",
//		SchemaDir: "schemas",
//		OutputDir: "context",
//	})
//
// Each stage is also available on its own; see Extract, Compress,
// ParseCompact and Analyze.
package schemapack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dmaes/schemapack/internal/compact"
	"github.com/dmaes/schemapack/internal/config"
	"github.com/dmaes/schemapack/internal/ddl"
	"github.com/dmaes/schemapack/internal/extract"
	"github.com/dmaes/schemapack/internal/logger"
	"github.com/dmaes/schemapack/internal/report"
	"github.com/dmaes/schemapack/internal/schema"
	"github.com/dmaes/schemapack/internal/stats"
)

// RunOptions configures a full pipeline run.
//
// All fields except InputFile are optional: SchemaDir defaults to
// "schemas", OutputDir to "context", Settings to "schemapack.yaml" (which
// may be absent), and Logger to a console logger on stderr.
type RunOptions struct {
	// InputFile is the schema dump to process, read as UTF-8 with a single
	// Latin-1 fallback attempt.
	InputFile string

	// SchemaDir receives schema_only.sql and schema_compressed.txt.
	SchemaDir string

	// OutputDir receives the context/stats JSON artifacts and summary.md.
	OutputDir string

	// Settings is the path of the optional YAML settings file.
	Settings string

	// Logger receives parse diagnostics and progress events.
	Logger *zerolog.Logger
}

// RunResult reports where the artifacts went and what was produced.
type RunResult struct {
	ExtractedPath string
	CompactPath   string
	ContextPath   string
	StatsPath     string
	SummaryPath   string

	Report extract.Report
	Schema *schema.Schema
	Stats  *stats.Snapshot
}

// Run executes the whole pipeline: read, extract, compress, re-parse the
// compact text, analyze, and write every artifact. The compact file is
// re-parsed from disk so it is exercised as the sole downstream input on
// every run.
func Run(opts RunOptions) (*RunResult, error) {
	if opts.InputFile == "" {
		return nil, fmt.Errorf("input file is required")
	}
	if opts.SchemaDir == "" {
		opts.SchemaDir = "schemas"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "context"
	}
	if opts.Settings == "" {
		opts.Settings = "schemapack.yaml"
	}

	cfg, err := config.Load(opts.Settings)
	if err != nil {
		return nil, err
	}

	log := resolveLogger(opts.Logger, cfg.LogLevel)

	lines, err := extract.ReadLines(opts.InputFile)
	if err != nil {
		return nil, err
	}

	kept, rep := extract.Filter(lines)
	log.Info().
		Int("total_lines", rep.TotalLines).
		Int("kept_lines", rep.KeptLines).
		Int("tables", rep.TableCount).
		Float64("ratio", rep.Ratio()).
		Msg("extracted schema statements")

	if err := os.MkdirAll(opts.SchemaDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create schema directory: %w", err)
	}
	extractedPath := filepath.Join(opts.SchemaDir, "schema_only.sql")
	if err := writeLines(extractedPath, kept); err != nil {
		return nil, err
	}

	parsed, ddlDiags := ddl.NewParser(log).Parse(kept)
	if len(ddlDiags) > 0 {
		log.Info().Int("skipped", len(ddlDiags)).Msg("DDL lines skipped during parsing")
	}

	compactPath := filepath.Join(opts.SchemaDir, "schema_compressed.txt")
	if err := os.WriteFile(compactPath, []byte(compact.Format(parsed)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write compact schema: %w", err)
	}

	model, compactDiags, err := compact.NewParser(log).ParseFile(compactPath)
	if err != nil {
		return nil, err
	}
	if len(compactDiags) > 0 {
		log.Warn().Int("skipped", len(compactDiags)).Msg("compact lines skipped during parsing")
	}

	snap := stats.Compute(model, cfg.Statistics)

	writer := report.NewWriter(opts.OutputDir)
	contextPath, statsPath, err := writer.WriteArtifacts(model, snap, compactPath)
	if err != nil {
		return nil, err
	}
	summaryPath, err := writer.WriteSummary(snap, cfg.Statistics.MaxDisplayedItems)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("tables", snap.TableCount).
		Int("columns", snap.TotalColumns).
		Int("relationships", snap.TotalForeignKeys).
		Msg("pipeline complete")

	return &RunResult{
		ExtractedPath: extractedPath,
		CompactPath:   compactPath,
		ContextPath:   contextPath,
		StatsPath:     statsPath,
		SummaryPath:   summaryPath,
		Report:        rep,
		Schema:        model,
		Stats:         snap,
	}, nil
}

// Extract filters raw dump lines down to schema statements.
func Extract(lines []string) ([]string, extract.Report) {
	return extract.Filter(lines)
}

// Compress parses extracted DDL lines and returns the model together with
// its compact-notation serialization.
func Compress(lines []string, log zerolog.Logger) (*schema.Schema, string) {
	parsed, _ := ddl.NewParser(log).Parse(lines)
	return parsed, compact.Format(parsed)
}

// ParseCompact parses compact notation text into a schema model.
func ParseCompact(text string, log zerolog.Logger) *schema.Schema {
	model, _ := compact.NewParser(log).Parse(text)
	return model
}

// Analyze computes a statistics snapshot for a model using the settings
// from path (defaults apply when the file is absent).
func Analyze(model *schema.Schema, settingsPath string) (*stats.Snapshot, error) {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	return stats.Compute(model, cfg.Statistics), nil
}

func resolveLogger(l *zerolog.Logger, level string) zerolog.Logger {
	if l != nil {
		return *l
	}
	return logger.New(os.Stderr, level)
}

func writeLines(path string, lines []string) error {
	var size int
	for _, l := range lines {
		size += len(l) + 1
	}
	buf := make([]byte, 0, size)
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
