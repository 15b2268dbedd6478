package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driveindex/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "index.db"))
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })

	return store
}

func testResource(id string) *models.Resource {
	size := int64(2048)
	modified := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	return &models.Resource{
		EntityID:     id,
		Breadcrumbs:  []models.Breadcrumb{},
		FileID:       id,
		Name:         "Report " + id + ".pdf",
		MimeType:     "application/pdf",
		Parents:      []string{"p1"},
		Owners:       []models.Owner{{DisplayName: "Ada", EmailAddress: "ada@example.com"}},
		ModifiedTime: &modified,
		Size:         &size,
		MD5Checksum:  "abc123",
		Fetch: models.FetchReference{
			URL:  "https://www.googleapis.com/drive/v3/files/" + id + "?alt=media",
			Mode: models.FetchModeDirect,
		},
	}
}

func TestNewSQLiteStore_CreatesSchema(t *testing.T) {
	store := newTestStore(t)

	for _, table := range []string{"containers", "resources", "sync_state"} {
		var count int

		err := store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		require.NoError(t, err, table)
		assert.Equal(t, 0, count, table)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported index driver")
}

func TestRebind(t *testing.T) {
	sqlite := &Store{dialect: DialectSQLite}
	postgres := &Store{dialect: DialectPostgres}

	query := "SELECT a FROM t WHERE b = ? AND c = ?"

	assert.Equal(t, query, sqlite.rebind(query))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", postgres.rebind(query))
}

func TestPutResource_HasResource(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ok, err := store.HasResource(ctx, "f1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutResource(ctx, "drive", testResource("f1")))

	ok, err = store.HasResource(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPutResource_Upsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	res := testResource("f1")
	require.NoError(t, store.PutResource(ctx, "drive", res))

	res.Name = "Renamed.pdf"
	res.Size = nil
	require.NoError(t, store.PutResource(ctx, "drive", res))

	var (
		count int
		name  string
	)

	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM resources").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, store.db.QueryRow("SELECT name FROM resources WHERE entity_id = 'f1'").Scan(&name))
	assert.Equal(t, "Renamed.pdf", name)

	var sizeIsNull bool

	require.NoError(t, store.db.QueryRow("SELECT size_bytes IS NULL FROM resources WHERE entity_id = 'f1'").Scan(&sizeIsNull))
	assert.True(t, sizeIsNull)
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	state, err := store.GetSyncState(ctx, "drive")
	require.NoError(t, err)
	assert.Nil(t, state)

	syncTime := time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.UpdateSyncState(ctx, SyncState{
		SourceName: "drive", LastSyncTime: syncTime, ContainerCount: 2, ResourceCount: 10,
	}))
	require.NoError(t, store.UpdateSyncState(ctx, SyncState{
		SourceName: "drive", LastSyncTime: syncTime.Add(time.Hour), ContainerCount: 3, ResourceCount: 12,
	}))

	state, err = store.GetSyncState(ctx, "drive")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, syncTime.Add(time.Hour), state.LastSyncTime)
	assert.Equal(t, 3, state.ContainerCount)
	assert.Equal(t, 12, state.ResourceCount)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.PutContainer(ctx, "drive", &models.Container{
		EntityID: "d1", DriveID: "d1", Name: "Team", Kind: "drive#drive", CreatedTime: &created,
	}))

	native := testResource("doc1")
	native.MimeType = "application/vnd.google-apps.document"
	native.Size = nil
	native.Fetch = models.FetchReference{
		URL:  "https://www.googleapis.com/drive/v3/files/doc1/export?mimeType=application/pdf",
		Mode: models.FetchModeExport,
	}

	require.NoError(t, store.PutResource(ctx, "drive", testResource("f1")))
	require.NoError(t, store.PutResource(ctx, "drive", testResource("f2")))
	require.NoError(t, store.PutResource(ctx, "other", native))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalContainers)
	assert.Equal(t, 3, stats.TotalResources)
	assert.Equal(t, int64(4096), stats.TotalBytes)
	assert.Equal(t, 2, stats.ResourcesBySource["drive"])
	assert.Equal(t, 1, stats.ResourcesBySource["other"])
	assert.Equal(t, 2, stats.ResourcesByMode[models.FetchModeDirect])
	assert.Equal(t, 1, stats.ResourcesByMode[models.FetchModeExport])
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), stats.LastModifiedSeen)
}

func TestStats_Empty(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalResources)
	assert.Equal(t, int64(0), stats.TotalBytes)
	assert.True(t, stats.LastModifiedSeen.IsZero())
}
