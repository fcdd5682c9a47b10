package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_SortsAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"002_second.up.sql":  {Data: []byte("CREATE TABLE b (x);")},
		"001_first.up.sql":   {Data: []byte("CREATE TABLE a (x);")},
		"001_first.down.sql": {Data: []byte("DROP TABLE a;")},
		"README.md":          {Data: []byte("ignored")},
		"bogus.up.sql":       {Data: []byte("ignored")},
	}

	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "CREATE TABLE a (x);", got[0].Up)
	assert.Equal(t, 2, got[1].Version)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.up.sql": {Data: []byte("SELECT 1;")},
		"001_b.up.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := LoadMigrations(fsys)
	assert.Error(t, err)
}

func TestEmbedded_ContainsSeenTable(t *testing.T) {
	got, err := Embedded()
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Contains(t, got[0].Up, "CREATE TABLE IF NOT EXISTS seen")
}
