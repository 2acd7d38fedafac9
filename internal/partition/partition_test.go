package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 30, 0, 0, time.UTC)
}

func TestKey(t *testing.T) {
	key, err := Key(date(2024, time.March, 5), Raw, "ibov", "parquet")
	require.NoError(t, err)
	assert.Equal(t, "raw/year=2024/month=03/day=05/ibov.parquet", key)

	key, err = Key(date(2024, time.December, 31), Refined, "ibov", "")
	require.NoError(t, err)
	assert.Equal(t, "refined/year=2024/month=12/day=31/ibov.parquet", key)
}

func TestKeyLayersDifferOnlyInLayer(t *testing.T) {
	d := date(2025, time.January, 2)
	raw, err := Key(d, Raw, "ibov", Ext)
	require.NoError(t, err)
	refined, err := Key(d, Refined, "ibov", Ext)
	require.NoError(t, err)

	swapped, ok := Swap(raw, Raw.Prefix(), Refined.Prefix())
	require.True(t, ok)
	assert.Equal(t, refined, swapped)
}

func TestKeyUniqueAcrossDates(t *testing.T) {
	seen := make(map[string]time.Time)
	start := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	prev := ""
	for d := start; d.Before(start.AddDate(0, 3, 0)); d = d.AddDate(0, 0, 1) {
		key, err := Key(d, Raw, "ibov", Ext)
		require.NoError(t, err)
		if other, dup := seen[key]; dup {
			t.Fatalf("key %s produced by %s and %s", key, other, d)
		}
		seen[key] = d
		// Keys sort the same way as dates.
		assert.Less(t, prev, key)
		prev = key
	}
}

func TestKeyInvalid(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Time
		layer   Layer
		dataset string
	}{
		{"zero date", time.Time{}, Raw, "ibov"},
		{"unknown layer", date(2024, 1, 1), Layer("trusted"), "ibov"},
		{"empty dataset", date(2024, 1, 1), Raw, ""},
		{"dataset with slash", date(2024, 1, 1), Raw, "a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Key(tt.d, tt.layer, tt.dataset, Ext)
			require.ErrorIs(t, err, errors.ErrInvalidPartition)
		})
	}
}

func TestKeyAt(t *testing.T) {
	d := date(2024, time.March, 5)
	key, err := KeyAt(d, Raw, "landing/", "ibov", Ext)
	require.NoError(t, err)
	assert.Equal(t, "landing/year=2024/month=03/day=05/ibov.parquet", key)

	key, err = KeyAt(d, Raw, "", "ibov", Ext)
	require.NoError(t, err)
	assert.Equal(t, "raw/year=2024/month=03/day=05/ibov.parquet", key)

	key, err = KeyAt(d, Refined, "lake/refined/", "ibov", Ext)
	require.NoError(t, err)
	assert.Equal(t, "lake/refined/year=2024/month=03/day=05/ibov.parquet", key)

	for _, bad := range []string{"landing", "/landing/"} {
		_, err := KeyAt(d, Raw, bad, "ibov", Ext)
		assert.ErrorIs(t, err, errors.ErrInvalidPartition, bad)
	}
}

func TestParse(t *testing.T) {
	info, err := Parse("refined/year=2024/month=02/day=29/ibov.parquet")
	require.NoError(t, err)
	assert.Equal(t, Refined, info.Layer)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), info.Date)
	assert.Equal(t, "ibov", info.Dataset)
	assert.Equal(t, "parquet", info.Ext)

	for _, bad := range []string{
		"raw/ibov.parquet",
		"raw/year=2023/month=02/day=29/ibov.parquet",
		"raw/year=2024/month=2/day=01/ibov.parquet",
		"other/year=2024/month=02/day=01/ibov.parquet",
		"raw/year=2024/month=02/day=01/ibov",
	} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, errors.ErrInvalidPartition, bad)
	}
}

func TestSwap(t *testing.T) {
	got, ok := Swap("raw/year=2024/month=01/day=02/raw.parquet", "raw/", "refined/")
	require.True(t, ok)
	// Only the leading segment changes.
	assert.Equal(t, "refined/year=2024/month=01/day=02/raw.parquet", got)

	_, ok = Swap("other/x.parquet", "raw/", "refined/")
	assert.False(t, ok)
}

func TestLatest(t *testing.T) {
	keys := []string{
		"raw/year=2024/month=10/day=01/ibov.parquet",
		"raw/year=2024/month=09/day=30/ibov.parquet",
		"raw/year=2024/month=10/day=02/_SUCCESS",
	}
	got, err := Latest(keys, ".parquet")
	require.NoError(t, err)
	assert.Equal(t, "raw/year=2024/month=10/day=01/ibov.parquet", got)

	_, err = Latest(nil, ".parquet")
	require.ErrorIs(t, err, errors.ErrNoData)
}
