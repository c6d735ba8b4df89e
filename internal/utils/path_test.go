package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cases := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrEmptyPath},
		{name: "home", input: "~", want: filepath.Clean(home)},
		{name: "home relative", input: "~/.syftvault", want: filepath.Join(home, ".syftvault")},
		{name: "absolute", input: "/tmp/vault/../vault", want: "/tmp/vault"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolvePath(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolvePathRelative(t *testing.T) {
	got, err := ResolvePath("./data")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestEnsureParent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "vault.db")

	require.NoError(t, EnsureParent(target))
	assert.True(t, DirExists(filepath.Join(dir, "a", "b")))
	assert.False(t, FileExists(target))

	// idempotent
	require.NoError(t, EnsureParent(target))
}
