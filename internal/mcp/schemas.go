package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func stringList(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "string"},
	}
}

// preprocessFileTool returns the tool definition for preprocess_file
func preprocessFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "preprocess_file",
		Description: "Preprocess a C or C++ file and report includes, macros, skipped ranges and header guards per visited file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path or rfs: URL of the main file",
				},
				"include_dirs":        stringList("User include directories (-I)"),
				"system_include_dirs": stringList("System include directories (-isystem)"),
				"defines":             stringList("Macro definitions as NAME or NAME=VALUE (-D)"),
				"forced_includes":     stringList("Files included before the main file (-include)"),
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Source language; inferred from the extension when omitted",
					"enum":        []string{"C", "C++"},
				},
				"standard": map[string]interface{}{
					"type":        "string",
					"description": "Language standard as passed to -std (c99, c11, c++17, gnu++14, ...)",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getFileInfoTool returns the tool definition for get_file_info
func getFileInfoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_file_info",
		Description: "Return the stored directives of one file of a preprocessed unit",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"unit": map[string]interface{}{
					"type":        "string",
					"description": "Main file of the preprocessed unit",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File within the unit; defaults to the main file",
				},
			},
			Required: []string{"unit"},
		},
	}
}

// searchMacrosTool returns the tool definition for search_macros
func searchMacrosTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_macros",
		Description: "Find macro definitions by name prefix across all preprocessed units",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Macro name or name prefix",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Match names by prefix or exactly",
					"enum":        []string{"prefix", "exact"},
					"default":     "prefix",
				},
				"defined_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Skip #undef directives",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report stored unit counts and database health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
