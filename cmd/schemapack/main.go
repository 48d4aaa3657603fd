package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dmaes/schemapack"
	"github.com/dmaes/schemapack/internal/compact"
	"github.com/dmaes/schemapack/internal/config"
	"github.com/dmaes/schemapack/internal/extract"
	"github.com/dmaes/schemapack/internal/logger"
	"github.com/dmaes/schemapack/internal/mcpserver"
	"github.com/dmaes/schemapack/internal/report"
	"github.com/dmaes/schemapack/internal/source"
	"github.com/dmaes/schemapack/internal/stats"
)

var (
	settingsFile string
	schemaDir    string
	outputDir    string
	outputFile   string
	dbURL        string
	schemaName   string
)

var rootCmd = &cobra.Command{
	Use:   "schemapack",
	Short: "Compress PostgreSQL schema dumps into an LLM-friendly notation",
	Long: `schemapack ingests a PostgreSQL schema dump, strips the data statements,
parses the DDL into a structured model, serializes it as a compact text
notation, and computes foreign-key graph statistics over the result.`,
}

var runCmd = &cobra.Command{
	Use:   "run <dump.sql>",
	Short: "Run the full pipeline: extract, compress, re-parse, analyze",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := schemapack.Run(schemapack.RunOptions{
			InputFile: args[0],
			SchemaDir: schemaDir,
			OutputDir: outputDir,
			Settings:  settingsFile,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Summary: %d tables, %d columns, %d relationships\n",
			result.Stats.TableCount, result.Stats.TotalColumns, result.Stats.TotalForeignKeys)
		fmt.Printf("- Compact schema: %s\n", result.CompactPath)
		fmt.Printf("- Context: %s\n", result.ContextPath)
		fmt.Printf("- Statistics: %s\n", result.StatsPath)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <dump.sql>",
	Short: "Strip data statements from a dump, keeping only schema DDL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := extract.ReadLines(args[0])
		if err != nil {
			return err
		}
		kept, rep := extract.Filter(lines)

		out := cmd.OutOrStdout()
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}
		for _, line := range kept {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "kept %d of %d lines (%.1f%%), %d tables\n",
			rep.KeptLines, rep.TotalLines, rep.Ratio()*100, rep.TableCount)
		return nil
	},
}

var compressCmd = &cobra.Command{
	Use:   "compress <schema.sql>",
	Short: "Parse extracted DDL and emit the compact notation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		lines, err := extract.ReadLines(args[0])
		if err != nil {
			return err
		}
		model, text := schemapack.Compress(lines, log)

		if outputFile != "" {
			if err := os.WriteFile(outputFile, []byte(text), 0o644); err != nil {
				return fmt.Errorf("failed to write compact schema: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "compressed %d tables to %s\n", model.Len(), outputFile)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <schema_compressed.txt>",
	Short: "Compute statistics from a compact schema file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		cfg, err := config.Load(settingsFile)
		if err != nil {
			return err
		}

		model, diags, err := compact.NewParser(log).ParseFile(args[0])
		if err != nil {
			return err
		}
		if len(diags) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d compact lines skipped\n", len(diags))
		}

		snap := stats.Compute(model, cfg.Statistics)
		writer := report.NewWriter(outputDir)
		contextPath, statsPath, err := writer.WriteArtifacts(model, snap, args[0])
		if err != nil {
			return err
		}
		summaryPath, err := writer.WriteSummary(snap, cfg.Statistics.MaxDisplayedItems)
		if err != nil {
			return err
		}

		fmt.Printf("Summary: %d tables, %d columns, %d relationships\n",
			snap.TableCount, snap.TotalColumns, snap.TotalForeignKeys)
		fmt.Printf("- Context: %s\n- Statistics: %s\n- Summary: %s\n", contextPath, statsPath, summaryPath)
		return nil
	},
}

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Build the compact notation from a live PostgreSQL database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbURL == "" {
			return fmt.Errorf("--db-url is required")
		}
		ctx := context.Background()

		client, err := source.Connect(ctx, dbURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to close connection: %v\n", err)
			}
		}()

		model, err := source.NewIntrospector(client, schemaName).Introspect(ctx)
		if err != nil {
			return err
		}

		text := compact.Format(model)
		if outputFile != "" {
			if err := os.WriteFile(outputFile, []byte(text), 0o644); err != nil {
				return fmt.Errorf("failed to write compact schema: %w", err)
			}
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the schema tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		return mcpserver.New(log, settingsFile).Serve()
	},
}

func buildLogger() (zerolog.Logger, error) {
	cfg, err := config.Load(settingsFile)
	if err != nil {
		return zerolog.Logger{}, err
	}
	return logger.New(os.Stderr, cfg.LogLevel), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsFile, "settings", "s", "schemapack.yaml", "Settings file path")

	runCmd.Flags().StringVar(&schemaDir, "schema-dir", "schemas", "Directory for extracted and compact schema files")
	runCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "context", "Directory for context/statistics artifacts")

	extractCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	compressCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	statsCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "context", "Directory for context/statistics artifacts")

	introspectCmd.Flags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	introspectCmd.Flags().StringVar(&schemaName, "schema", "public", "Database schema name")
	introspectCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	rootCmd.AddCommand(runCmd, extractCmd, compressCmd, statsCmd, introspectCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
