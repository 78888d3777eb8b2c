package fsys

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ppbridge/pkg/types"
)

func newRemoteFS(t *testing.T) FileSystem {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/usr/include/sys", 0755))
	require.NoError(t, afero.WriteFile(mem, "/usr/include/stdio.h", []byte("int printf();\n"), 0644))
	return NewVirtual("rfs:user@host:22", mem, true)
}

func TestVirtualFS_Kinds(t *testing.T) {
	fs := newRemoteFS(t)

	assert.True(t, fs.IsDir("/usr/include"))
	assert.False(t, fs.IsFile("/usr/include"))
	assert.True(t, fs.IsFile("/usr/include/stdio.h"))
	assert.False(t, fs.Exists("/usr/include/missing.h"))
	assert.Equal(t, "rfs:user@host:22/usr/include/stdio.h", fs.URL("/usr/include//stdio.h"))
	assert.Equal(t, "rfs:user@host:22", LookupPrefix(fs))
	assert.Empty(t, LookupPrefix(NewLocal()))
}

func TestRegistry_Resolve(t *testing.T) {
	remote := newRemoteFS(t)
	reg := NewRegistry(Options{})
	reg.Register(remote)

	fs, p, err := reg.Resolve("rfs://user@host:22/usr/include/stdio.h")
	require.NoError(t, err)
	assert.Equal(t, remote.ID(), fs.ID())
	assert.Equal(t, "/usr/include/stdio.h", p)

	fs, p, err = reg.Resolve("/tmp/x.c")
	require.NoError(t, err)
	assert.Equal(t, LocalID, fs.ID())
	assert.Equal(t, "/tmp/x.c", p)

	_, _, err = reg.Resolve("rfs:other:1/x")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestRegistry_AlwaysUseVFS(t *testing.T) {
	vfs := NewVirtual("ide", afero.NewMemMapFs(), false)
	reg := NewRegistry(Options{AlwaysUseVFS: true, VFS: vfs})
	assert.Equal(t, "ide", reg.Local().ID())

	reg = NewRegistry(Options{VFS: vfs})
	assert.Equal(t, LocalID, reg.Local().ID())
}

func TestInterner_Identity(t *testing.T) {
	in := NewInterner(16)
	fs := newRemoteFS(t)

	a := in.Identity(fs, "/usr/include/stdio.h", "/usr/include", false, 1)
	b := in.Identity(fs, "/usr/include/./stdio.h", "/usr/include", false, 1)
	require.NoError(t, a.Validate())
	assert.Equal(t, a.Path, b.Path)
	assert.True(t, a.SameFile(b))

	abs := in.Identity(fs, "/usr/include/stdio.h", "", false, 4)
	require.NoError(t, abs.Validate())
	assert.Equal(t, types.NoSearchIndex, abs.SearchIndex)
	assert.False(t, abs.DefaultSearchRoot)
	assert.True(t, abs.IsAbsoluteInclude())

	local := in.Identity(fs, "/usr/include/sys/types.h", "", true, 0)
	require.NoError(t, local.Validate())
	assert.Equal(t, types.NoSearchIndex, local.SearchIndex)
	assert.True(t, local.DefaultSearchRoot)
}
