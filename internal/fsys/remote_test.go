package fsys

import (
	"errors"
	"testing"

	"github.com/dshills/ppbridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemotePath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RemoteAddress
	}{
		{
			name: "double slash form",
			raw:  "rfs://user@host:22/usr/include",
			want: RemoteAddress{User: "user", Host: "host", Port: 22, Path: "/usr/include"},
		},
		{
			name: "compact form",
			raw:  "rfs:user@host:22/usr/include",
			want: RemoteAddress{User: "user", Host: "host", Port: 22, Path: "/usr/include"},
		},
		{
			name: "no user no port",
			raw:  "rfs:buildhost:/opt/sdk/include",
			want: RemoteAddress{Host: "buildhost", Path: "/opt/sdk/include"},
		},
		{
			name: "empty path",
			raw:  "rfs:host:2222",
			want: RemoteAddress{Host: "host", Port: 2222, Path: "/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemotePath(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRemotePath_MissingColon(t *testing.T) {
	_, err := ParseRemotePath("rfs:/usr/include")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, _, err = SplitPath("rfs://hostonly")
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestSplitPath_LocalIdentity(t *testing.T) {
	sel, p, err := SplitPath("/home/me/project/main.c")
	require.NoError(t, err)
	assert.Empty(t, sel)
	assert.Equal(t, "/home/me/project/main.c", p)
}

func TestRemoteAddress_RoundTrip(t *testing.T) {
	addr, err := ParseRemotePath("rfs://dev@box:22/src/a.h")
	require.NoError(t, err)
	assert.Equal(t, "rfs:dev@box:22", addr.Selector())

	again, err := ParseRemotePath(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}
