// Package mcp implements the Model Context Protocol (MCP) server for ppbridge.
//
// The server exposes four tools to MCP clients:
//   - preprocess_file: Preprocess a C or C++ unit and store the results
//   - get_file_info: Read back the directives of one file of a stored unit
//   - search_macros: Find macro definitions by name across stored units
//   - get_status: Database statistics and health
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio. Logs go to stderr so they never mix with
// protocol messages on stdout.
//
//	ppbridge serve
//
// # Tool: preprocess_file
//
//	Request:
//	{
//	  "name": "preprocess_file",
//	  "arguments": {
//	    "path": "/proj/src/main.c",
//	    "include_dirs": ["/proj/include"],
//	    "defines": ["DEBUG=1"],
//	    "standard": "c11"
//	  }
//	}
//
//	Response:
//	{
//	  "file": "/proj/src/main.c",
//	  "language": "C",
//	  "dialect": "c11",
//	  "fingerprint": 1234567890,
//	  "files": [
//	    {
//	      "path": "/proj/src/main.c",
//	      "index": 0,
//	      "includes": [{"spelling": "util.h", "range": [0, 19], "resolved": "/proj/src/util.h", "search_index": 0}],
//	      "expansions": 3,
//	      "usages": 1,
//	      "skipped": [[40, 77]]
//	    }
//	  ]
//	}
//
// The main path must be absolute or an rfs: URL. Forced includes are listed
// first in the main file's includes with the range [-1, -1].
//
// # Tool: get_file_info
//
// Takes the unit's main path and optionally a file of that unit. The
// response holds the stored file report plus the checksum of the macro
// state saved for the unit.
//
// # Tool: search_macros
//
//	{"query": "LOG", "limit": 10, "mode": "prefix", "defined_only": true}
//
// Exact name matches come first, then shorter names. Results are cached
// until the next preprocess_file call.
//
// # Tool: get_status
//
// Returns unit, file, include and macro counts, the number of unresolved
// includes, the last preprocessing time and database health.
//
// # Error Handling
//
// Tool failures are returned as MCPError values carrying a JSON-RPC code:
//
//	-32602  invalid params
//	-32603  internal error
//	-32001  file not found
//	-32002  preprocessing already in progress
//	-32003  unit not preprocessed
//	-32004  empty search query
//
// The data field names the offending parameter or wraps the underlying
// error message.
package mcp
