package fsutil_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvs-project/ctverify/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.jwt")
	data := []byte("a.b.c")

	require.NoError(t, fsutil.AtomicWrite(path, data, 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestAtomicWrite_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, fsutil.AtomicWrite(path, []byte("new"), 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestAtomicWriteFunc_FailureLeavesNoTmp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.jwt")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0644))

	err := fsutil.AtomicWriteFunc(path, 0644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("signer exploded")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(content))
}

func TestFsyncDir(t *testing.T) {
	assert.NoError(t, fsutil.FsyncDir(t.TempDir()))
	assert.Error(t, fsutil.FsyncDir(filepath.Join(t.TempDir(), "missing")))
}
