// Package storagetest checks that a storage.Store backend honours the
// gateway contract.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/storage"
)

// Run exercises put/get/list semantics against an empty store.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty list", func(t *testing.T) {
		keys, err := s.List(ctx, "raw/")
		require.NoError(t, err)
		assert.NotNil(t, keys)
		assert.Empty(t, keys)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "raw/year=2024/month=01/day=01/ibov.parquet")
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("put get overwrite", func(t *testing.T) {
		key := "raw/year=2024/month=01/day=02/ibov.parquet"
		require.NoError(t, s.Put(ctx, key, []byte("first")))
		require.NoError(t, s.Put(ctx, key, []byte("second")))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("list sorted by prefix", func(t *testing.T) {
		for _, k := range []string{
			"raw/year=2024/month=02/day=01/ibov.parquet",
			"refined/year=2024/month=01/day=02/ibov.parquet",
			"raw/year=2023/month=12/day=29/ibov.parquet",
		} {
			require.NoError(t, s.Put(ctx, k, []byte(k)))
		}
		keys, err := s.List(ctx, "raw/")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"raw/year=2023/month=12/day=29/ibov.parquet",
			"raw/year=2024/month=01/day=02/ibov.parquet",
			"raw/year=2024/month=02/day=01/ibov.parquet",
		}, keys)

		keys, err = s.List(ctx, "refined/")
		require.NoError(t, err)
		assert.Equal(t, []string{"refined/year=2024/month=01/day=02/ibov.parquet"}, keys)
	})
}
