package toolchaindb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anubis-build/anubis/internal/adapters/toolchaindb"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := toolchaindb.NewStore(root)
	require.NoError(t, err)

	rec := toolchaindb.Record{
		Name:        "default",
		Target:      "//toolchains:default",
		CppCompiler: "/opt/zig/zig",
		CppArchiver: "/opt/zig/ar",
		VerifiedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Put(rec))

	got, ok := store.Get("//toolchains:default")
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = store.Get("//toolchains:missing")
	assert.False(t, ok)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	root := t.TempDir()
	store, err := toolchaindb.NewStore(root)
	require.NoError(t, err)
	require.NoError(t, store.Put(toolchaindb.Record{Name: "a", Target: "//toolchains:a"}))
	require.NoError(t, store.Put(toolchaindb.Record{Name: "b", Target: "//toolchains:b"}))

	reopened, err := toolchaindb.NewStore(root)
	require.NoError(t, err)

	records := reopened.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "//toolchains:a", records[0].Target)
	assert.Equal(t, "//toolchains:b", records[1].Target)
}

func TestStore_EmptyRootIsFine(t *testing.T) {
	store, err := toolchaindb.NewStore(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, store.Records())
}
