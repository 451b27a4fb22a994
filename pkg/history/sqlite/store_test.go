package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/history"
)

var base = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store, path
}

func sample(id, user string, offset time.Duration) history.Record {
	return history.Record{
		ID:             id,
		UserID:         user,
		UserEmail:      user + "@example.com",
		Brand:          "Maruti",
		Model:          "Swift",
		Year:           2019,
		FuelType:       "Diesel",
		Transmission:   "Manual",
		PredictedPrice: 512345.67,
		Timestamp:      base.Add(offset),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	_, path := openTestStore(t)

	again, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, again.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'predictions'`).Scan(&name))
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	want := sample("rec-1", "u1", 0)
	require.NoError(t, store.Append(ctx, want))

	got, err := store.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestStoreRecentOrderingAndLimit(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, store.Append(ctx, sample(fmt.Sprintf("r%02d", i), "u1", time.Duration(i)*time.Second)))
	}
	require.NoError(t, store.Append(ctx, sample("tie-a", "u2", 0)))
	require.NoError(t, store.Append(ctx, sample("tie-b", "u2", 0)))

	got, err := store.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, history.DefaultLimit)
	assert.Equal(t, "r11", got[0].ID)
	assert.Equal(t, "r02", got[9].ID)

	got, err = store.Recent(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = store.Recent(ctx, "u2", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tie-b", got[0].ID)
}

func TestStoreRejects(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	_, err := store.Recent(ctx, "", 5)
	assert.ErrorIs(t, err, history.ErrUserRequired)

	assert.Error(t, store.Append(ctx, history.Record{ID: "x"}))

	require.NoError(t, store.Append(ctx, sample("dup", "u1", 0)))
	assert.Error(t, store.Append(ctx, sample("dup", "u1", time.Second)))
}

func TestStoreBacksSink(t *testing.T) {
	store, _ := openTestStore(t)
	sink := history.NewStoreSink(store, nil, history.WithSinkClock(func() time.Time { return base }))
	sink.Record(context.Background(), sample("", "", 0).Selection(), 612000, drivalyze.Identity{UserID: "u9"})
	require.NoError(t, sink.Close(context.Background()))

	got, err := store.Recent(context.Background(), "u9", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 612000.0, got[0].PredictedPrice)
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x int);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x int);\n", extractUpMigration(content))
	assert.Equal(t, "SELECT 1;", extractUpMigration("SELECT 1;"))
}
