package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ppbridge/internal/config"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/indexer"
	"github.com/dshills/ppbridge/internal/searcher"
	"github.com/dshills/ppbridge/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "ppbridge"
	// ServerVersion is the current server version
	ServerVersion = "0.1.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	registry *fsys.Registry
	settings config.Settings
	log      *slog.Logger
}

// NewServer opens the database named by settings and creates the server
func NewServer(settings config.Settings, logger *slog.Logger) (*Server, error) {
	dbPath := settings.ExpandDBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return newServer(store, settings, nil, logger), nil
}

func newServer(store storage.Storage, settings config.Settings, registry *fsys.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		indexer:  indexer.New(store, settings, registry, logger),
		searcher: searcher.New(store, 1000),
		registry: registry,
		settings: settings,
		log:      logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	s.log.Info("mcp.serve", "name", ServerName, "version", ServerVersion, "db", s.settings.ExpandDBPath())
	return server.ServeStdio(s.mcp)
}

// Close releases the store
func (s *Server) Close() error {
	return s.storage.Close()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(preprocessFileTool(), s.handlePreprocessFile)
	s.mcp.AddTool(getFileInfoTool(), s.handleGetFileInfo)
	s.mcp.AddTool(searchMacrosTool(), s.handleSearchMacros)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
