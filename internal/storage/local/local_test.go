package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, New(t.TempDir()))
}

func TestStoreMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does", "not", "exist"))
	keys, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStoreLayout(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	key := "raw/year=2024/month=03/day=05/ibov.parquet"
	require.NoError(t, s.Put(context.Background(), key, []byte("x")))

	data, err := os.ReadFile(filepath.Join(root, "raw", "year=2024", "month=03", "day=05", "ibov.parquet"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	// No temp files survive a successful put.
	entries, err := os.ReadDir(filepath.Join(root, "raw", "year=2024", "month=03", "day=05"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	s := New(t.TempDir())
	for _, key := range []string{"../evil", "", "/etc/passwd"} {
		err := s.Put(context.Background(), key, []byte("x"))
		assert.ErrorIs(t, err, errors.ErrStorage, key)
	}
}
