package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvedPath_Validate(t *testing.T) {
	tests := []struct {
		name    string
		path    ResolvedPath
		wantErr error
	}{
		{
			name: "search path hit",
			path: ResolvedPath{Path: "/usr/include/stdio.h", SearchRoot: "/usr/include", SearchIndex: 0},
		},
		{
			name: "next to includer",
			path: ResolvedPath{Path: "/proj/a.h", DefaultSearchRoot: true, SearchIndex: NoSearchIndex},
		},
		{
			name: "windows drive",
			path: ResolvedPath{Path: `C:\proj\a.h`, SearchIndex: NoSearchIndex},
		},
		{
			name:    "empty",
			path:    ResolvedPath{SearchIndex: NoSearchIndex},
			wantErr: ErrEmptyPath,
		},
		{
			name:    "relative",
			path:    ResolvedPath{Path: "a.h", SearchIndex: NoSearchIndex},
			wantErr: ErrRelativePath,
		},
		{
			name:    "root without index",
			path:    ResolvedPath{Path: "/inc/a.h", SearchRoot: "/inc", SearchIndex: NoSearchIndex},
			wantErr: ErrSearchRootMismatch,
		},
		{
			name:    "index without root",
			path:    ResolvedPath{Path: "/inc/a.h", SearchIndex: 2},
			wantErr: ErrSearchRootMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.path.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolvedPath_Helpers(t *testing.T) {
	abs := &ResolvedPath{FileSystem: "local", Path: "/opt/x/cfg.h", SearchIndex: NoSearchIndex}
	assert.True(t, abs.IsAbsoluteInclude())
	assert.Equal(t, "cfg.h", abs.Base())

	local := &ResolvedPath{FileSystem: "local", Path: "/opt/x/cfg.h", DefaultSearchRoot: true, SearchIndex: NoSearchIndex}
	assert.False(t, local.IsAbsoluteInclude())
	assert.True(t, abs.SameFile(local))

	remote := &ResolvedPath{FileSystem: "rfs:build:22", Path: "/opt/x/cfg.h", SearchIndex: NoSearchIndex}
	assert.False(t, abs.SameFile(remote))
	assert.False(t, abs.SameFile(nil))

	var none *ResolvedPath
	assert.True(t, none.SameFile(nil))

	win := &ResolvedPath{Path: `D:\src\lib\util.h`}
	assert.Equal(t, "util.h", win.Base())
}

func TestIsAbsolute(t *testing.T) {
	assert.True(t, IsAbsolute("/a"))
	assert.True(t, IsAbsolute("C:/a"))
	assert.True(t, IsAbsolute(`c:\a`))
	assert.False(t, IsAbsolute("a/b"))
	assert.False(t, IsAbsolute("C:"))
	assert.False(t, IsAbsolute(""))
}
