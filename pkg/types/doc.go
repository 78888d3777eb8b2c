// Package types provides the shared data model of the preprocessor bridge.
//
// The types here are produced by the preprocessing callback and consumed by the
// IDE code model, the storage layer and the MCP tools:
//
//	ResolvedPath        where an #include landed (file system, absolute path, search root)
//	InclusionDirective  one #include / -include occurrence
//	MacroDirective      one #define / #undef
//	MacroReference      one usage or expansion of a macro
//	FileGuard           the macro of an #ifndef/#define header guard
//	ErrorDirective      a retained #error with a resumable handler state
//
// # Invariants
//
// A ResolvedPath always carries an absolute path, and its search root is empty
// exactly when its search index is NoSearchIndex:
//
//	rp := &types.ResolvedPath{Path: "/usr/include/stdio.h", SearchRoot: "/usr/include", SearchIndex: 0}
//	if err := rp.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// InclusionDirective is shared by pointer: its recursive flag is set after creation
// by the deep-inclusion detector and read concurrently by consumers.
package types
