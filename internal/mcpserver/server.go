// Package mcpserver exposes the parsing core to AI assistants over the
// Model Context Protocol: compressing a dump, fetching statistics, and
// fetching a single table all operate on files, never on a live database.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dmaes/schemapack/internal/compact"
	"github.com/dmaes/schemapack/internal/config"
	"github.com/dmaes/schemapack/internal/ddl"
	"github.com/dmaes/schemapack/internal/extract"
	"github.com/dmaes/schemapack/internal/stats"
)

// Server wires the pipeline stages into MCP tools.
type Server struct {
	log      zerolog.Logger
	settings string
}

// New creates a server whose statistics tools read the settings file at
// settingsPath (defaults apply when it is absent).
func New(log zerolog.Logger, settingsPath string) *Server {
	return &Server{log: log, settings: settingsPath}
}

// Serve registers the tools and serves MCP over stdio until the client
// disconnects.
func (s *Server) Serve() error {
	srv := server.NewMCPServer(
		"schemapack",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	compressTool := mcp.NewTool("compress_schema",
		mcp.WithDescription("Compress a PostgreSQL schema dump into compact notation"),
		mcp.WithString("dump_file",
			mcp.Required(),
			mcp.Description("Path to the schema dump (.sql)"),
		),
	)
	srv.AddTool(compressTool, s.handleCompress)

	statsTool := mcp.NewTool("schema_stats",
		mcp.WithDescription("Compute foreign-key graph statistics from a compact schema file"),
		mcp.WithString("compact_file",
			mcp.Required(),
			mcp.Description("Path to the compact schema file"),
		),
	)
	srv.AddTool(statsTool, s.handleStats)

	tableTool := mcp.NewTool("get_table",
		mcp.WithDescription("Fetch one table's columns, constraints and indexes from a compact schema file"),
		mcp.WithString("compact_file",
			mcp.Required(),
			mcp.Description("Path to the compact schema file"),
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Table name"),
		),
	)
	srv.AddTool(tableTool, s.handleTable)

	s.log.Info().Msg("starting schemapack mcp server")
	return server.ServeStdio(srv)
}

func (s *Server) handleCompress(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dumpFile, err := request.RequireString("dump_file")
	if err != nil {
		return mcp.NewToolResultError("dump_file parameter is required"), nil
	}

	lines, err := extract.ReadLines(dumpFile)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	kept, rep := extract.Filter(lines)
	model, _ := ddl.NewParser(s.log).Parse(kept)

	return mcp.NewToolResultText(fmt.Sprintf(
		"compressed %d tables (%d of %d lines kept):\n\n%s",
		rep.TableCount, rep.KeptLines, rep.TotalLines, compact.Format(model),
	)), nil
}

func (s *Server) handleStats(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	compactFile, err := request.RequireString("compact_file")
	if err != nil {
		return mcp.NewToolResultError("compact_file parameter is required"), nil
	}

	cfg, err := config.Load(s.settings)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	model, _, err := compact.NewParser(s.log).ParseFile(compactFile)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap := stats.Compute(model, cfg.Statistics)
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal statistics: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleTable(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	compactFile, err := request.RequireString("compact_file")
	if err != nil {
		return mcp.NewToolResultError("compact_file parameter is required"), nil
	}
	tableName, err := request.RequireString("table")
	if err != nil {
		return mcp.NewToolResultError("table parameter is required"), nil
	}

	model, _, err := compact.NewParser(s.log).ParseFile(compactFile)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	table, ok := model.Table(tableName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("table %q not found", tableName)), nil
	}

	out, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal table: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
