package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/devgraph/devgraph-mcp/internal/indexer"
	"github.com/devgraph/devgraph-mcp/internal/searcher"
	"github.com/devgraph/devgraph-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "devgraph-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// EnvDBPath overrides the default database location
	EnvDBPath = "DEVGRAPH_DB_PATH"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	db       *storage.DB
	indexer  *indexer.Indexer
	searcher *searcher.Engine
}

// DefaultDBFile resolves the database file path: the DEVGRAPH_DB_PATH
// environment variable when set, otherwise ~/.devgraph/devgraph.db
func DefaultDBFile() (string, error) {
	if p := os.Getenv(EnvDBPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".devgraph", "devgraph.db"), nil
}

// NewServer creates a new MCP server instance over the given database
// file. An empty dbFile resolves via DefaultDBFile.
func NewServer(ctx context.Context, dbFile string) (*Server, error) {
	if dbFile == "" {
		var err error
		if dbFile, err = DefaultDBFile(); err != nil {
			return nil, err
		}
	}

	db := storage.New(dbFile, storage.Config{})
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	idx := indexer.New(db)
	srch := searcher.New(db, nil)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		db:       db,
		indexer:  idx,
		searcher: srch,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.db.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(upsertEntityTool(), s.handleUpsertEntity)
	s.mcp.AddTool(deleteEntityTool(), s.handleDeleteEntity)
	s.mcp.AddTool(createRelationTool(), s.handleCreateRelation)
	s.mcp.AddTool(deleteRelationTool(), s.handleDeleteRelation)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(appendLogTool(), s.handleAppendLog)
	s.mcp.AddTool(queryLogsTool(), s.handleQueryLogs)
}
