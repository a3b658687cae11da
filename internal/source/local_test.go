package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	src := NewLocal(path)
	ctx := context.Background()

	fp1, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), fp1.Size)
	assert.NotEmpty(t, fp1.ETag)
	assert.NotEmpty(t, fp1.String())

	t.Run("stable for unchanged file", func(t *testing.T) {
		fp2, err := src.Fingerprint(ctx)
		require.NoError(t, err)
		assert.Equal(t, fp1, fp2)
	})

	t.Run("changes when the file is rewritten", func(t *testing.T) {
		// Backdate then rewrite so the mtime moves even on coarse filesystems.
		past := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(path, past, past))
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n3,4\n"), 0o644))

		fp3, err := src.Fingerprint(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, fp1.String(), fp3.String())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLocal(filepath.Join(dir, "absent.csv")).Fingerprint(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLocalOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	src := NewLocal(path)
	assert.Equal(t, path, src.Name())

	rc, err := src.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLocal(filepath.Join(dir, "absent.csv")).Open(context.Background())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
