package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go-civitai-generate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func testRecord(id string, createdAt time.Time) models.GenerationRecord {
	return models.GenerationRecord{
		ID:    id,
		Token: "tok-" + id,
		Model: "urn:air:sdxl:checkpoint:civitai:101055@128078",
		Request: models.GenerationRequest{
			Prompt:  "a fox",
			Sampler: "EulerA",
			Steps:   20,
			Width:   512,
			Height:  768,
			Seed:    -1,
		},
		RemoteURL: "https://x/" + id + ".png",
		CreatedAt: createdAt,
	}
}

func TestStoreAndGetGeneration(t *testing.T) {
	db := openTestDB(t)

	rec := testRecord("abc", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, db.StoreGeneration(rec))

	got, err := db.GetGeneration("abc")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestStoreGenerationRequiresID(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.StoreGeneration(models.GenerationRecord{}))
}

func TestGetGenerationNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetGeneration("missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListGenerationsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.StoreGeneration(testRecord("old", base.Add(-2*time.Hour))))
	require.NoError(t, db.StoreGeneration(testRecord("new", base)))
	require.NoError(t, db.StoreGeneration(testRecord("mid", base.Add(-time.Hour))))

	records, err := db.ListGenerations()

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "mid", records[1].ID)
	assert.Equal(t, "old", records[2].ID)
}

func TestListGenerationsSkipsForeignKeys(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.StoreGeneration(testRecord("abc", time.Now().UTC())))
	require.NoError(t, db.Put([]byte("schema_version"), []byte("1")))

	records, err := db.ListGenerations()

	require.NoError(t, err)
	assert.Len(t, records, 1)
}
