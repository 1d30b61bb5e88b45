package filestore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	st, err := New(dir)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "download.tmp")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	require.NoError(t, st.Save("agent-1", "doc-1", src))

	rc, err := st.Open("agent-1", "doc-1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	require.NoError(t, st.Delete("agent-1", "doc-1"))
	_, err = st.Open("agent-1", "doc-1")
	require.Error(t, err)

	// deleting an absent copy is a no-op
	require.NoError(t, st.Delete("agent-1", "doc-1"))
}

func TestStoreRejectsPathKeys(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	require.Error(t, st.Save("agent-1", "../escape", "whatever"))
	require.Error(t, st.Delete("a/b", "doc"))
	_, err = st.Open("agent-1", "..")
	require.Error(t, err)
}
