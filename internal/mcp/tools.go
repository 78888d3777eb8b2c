package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ppbridge/internal/compdb"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/indexer"
	"github.com/dshills/ppbridge/internal/searcher"
	"github.com/dshills/ppbridge/internal/storage"
	"github.com/dshills/ppbridge/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams           = -32602 // Invalid method parameters
	ErrorCodeInternalError           = -32603 // Internal JSON-RPC error
	ErrorCodeFileNotFound            = -32001 // Main file or unit file does not exist
	ErrorCodePreprocessingInProgress = -32002 // Another run is active
	ErrorCodeNotPreprocessed         = -32003 // Unit has no stored result
	ErrorCodeEmptyQuery              = -32004 // Query parameter is empty
)

// handlePreprocessFile handles the preprocess_file tool invocation
func (s *Server) handlePreprocessFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if !fsys.IsRemote(path) && !types.IsAbsolute(path) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": ErrPathNotAbsolute.Error(),
		})
	}

	h, err := compdb.NewProjectHandler(compdb.UnitOptions{
		File:           path,
		Language:       getStringDefault(args, "language", ""),
		Std:            getStringDefault(args, "standard", ""),
		UserIncludes:   getStringList(args, "include_dirs"),
		SystemIncludes: getStringList(args, "system_include_dirs"),
		Forced:         getStringList(args, "forced_includes"),
		Defines:        getStringList(args, "defines"),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid unit options", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	res, err := s.indexer.Preprocess(ctx, h)
	switch {
	case errors.Is(err, indexer.ErrInProgress):
		return nil, newMCPError(ErrorCodePreprocessingInProgress, "preprocessing already in progress", nil)
	case errors.Is(err, os.ErrNotExist):
		return nil, newMCPError(ErrorCodeFileNotFound, "file not found", map[string]interface{}{
			"path": path,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "preprocessing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()
	return mcp.NewToolResultText(formatJSON(indexer.NewUnitReport(res))), nil
}

// handleGetFileInfo handles the get_file_info tool invocation
func (s *Server) handleGetFileInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	unitPath, ok := args["unit"].(string)
	if !ok || unitPath == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "unit parameter is required", map[string]interface{}{
			"param":  "unit",
			"reason": "missing or empty",
		})
	}

	unit, err := s.storage.GetUnit(ctx, unitPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotPreprocessed, "unit not preprocessed", map[string]interface{}{
			"unit":    unitPath,
			"message": "Use the preprocess_file tool on this unit first.",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get unit", map[string]interface{}{
			"error": err.Error(),
		})
	}

	path := getStringDefault(args, "path", unit.MainPath)
	file, err := s.storage.GetFile(ctx, unit.ID, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeFileNotFound, "file not part of unit", map[string]interface{}{
			"unit": unitPath,
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get file", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := storage.LoadDirectives(ctx, s.storage, file); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load directives", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"unit":        unit.MainPath,
		"indexed_at":  unit.IndexedAt.Format(time.RFC3339),
		"fingerprint": unit.Fingerprint,
		"file":        indexer.NewFileReport(file),
	}
	if state, err := s.storage.LoadMacroState(ctx, unit.MainPath); err == nil {
		response["macro_state"] = map[string]interface{}{
			"checksum": state.Checksum(),
			"count":    len(state.Macros()),
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchMacros handles the search_macros tool invocation
func (s *Server) handleSearchMacros(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 20)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := searcher.Mode(getStringDefault(args, "mode", string(searcher.ModePrefix)))
	if mode != searcher.ModePrefix && mode != searcher.ModeExact {
		return nil, newMCPError(ErrorCodeInvalidParams, "mode must be prefix or exact", map[string]interface{}{
			"param": "mode",
			"value": mode,
		})
	}
	definedOnly, _ := args["defined_only"].(bool)

	resp, err := s.searcher.Search(ctx, searcher.Request{
		Query:       query,
		Limit:       limit,
		Mode:        mode,
		DefinedOnly: definedOnly,
		UseCache:    true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, m := range resp.Results {
		r := map[string]interface{}{
			"name":    m.Name,
			"file":    m.File,
			"defined": m.Defined,
			"range":   [2]int{m.Start, m.End},
		}
		if m.Params != nil {
			r["params"] = m.Params
		}
		results = append(results, r)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":       query,
		"mode":        resp.Mode,
		"count":       resp.TotalResults,
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     results,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"units_count":      status.UnitsCount,
			"files_count":      status.FilesCount,
			"inclusions_count": status.InclusionsCount,
			"unresolved_count": status.UnresolvedCount,
			"recursive_count":  status.RecursiveCount,
			"macros_count":     status.MacrosCount,
			"errors_count":     status.ErrorsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"fts_indexes_built":   status.Health.FTSIndexesBuilt,
		},
		"settings": map[string]interface{}{
			"skip_compiler_builtins":     s.settings.SkipCompilerBuiltins,
			"always_use_vfs":             s.settings.AlwaysUseVFS,
			"recover_not_found_includes": s.settings.RecoverNotFoundIncludes,
			"max_include_depth":          s.settings.MaxIncludeDepth,
		},
	}
	if !status.LastIndexedAt.IsZero() {
		response["last_indexed_at"] = status.LastIndexedAt.Format(time.RFC3339)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringList extracts a string array parameter; non-string items are dropped
func getStringList(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ErrPathNotAbsolute is reported for relative main file paths
var ErrPathNotAbsolute = errors.New("path must be absolute or an rfs: URL")
