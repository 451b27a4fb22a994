package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/activity"
)

var base = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func record(id, user string, offset time.Duration) Record {
	return Record{
		ID:             id,
		UserID:         user,
		UserEmail:      user + "@example.com",
		Brand:          "Honda",
		Model:          "City",
		Year:           2021,
		FuelType:       "Petrol",
		Transmission:   "Manual",
		PredictedPrice: 845000,
		Timestamp:      base.Add(offset),
	}
}

func TestRecordValidate(t *testing.T) {
	require.NoError(t, record("r1", "u1", 0).Validate())

	missingID := record("", "u1", 0)
	require.Error(t, missingID.Validate())

	incomplete := record("r2", "u1", 0)
	incomplete.FuelType = ""
	err := incomplete.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, drivalyze.ErrIncomplete))

	untimed := record("r3", "u1", 0)
	untimed.Timestamp = time.Time{}
	require.Error(t, untimed.Validate())
}

func TestMemoryStoreRecentNewestFirstWithDefaultLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, store.Append(ctx, record(fmt.Sprintf("a%02d", i), "alice", time.Duration(i)*time.Minute)))
	}
	require.NoError(t, store.Append(ctx, record("b1", "bob", time.Hour)))

	got, err := store.Recent(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultLimit)
	assert.Equal(t, "a11", got[0].ID)
	assert.Equal(t, "a02", got[len(got)-1].ID)
	for _, rec := range got {
		assert.Equal(t, "alice", rec.UserID)
	}

	got, err = store.Recent(ctx, "bob", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 13, store.Len())
}

func TestMemoryStoreTiesKeepAppendOrderNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, record("first", "u", 0)))
	require.NoError(t, store.Append(ctx, record("second", "u", 0)))

	got, err := store.Recent(ctx, "u", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].ID)
}

func TestMemoryStoreRejects(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Recent(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, ErrUserRequired)
	assert.Error(t, store.Append(context.Background(), Record{}))
}

func TestStoreHookAppendsPredictionEvents(t *testing.T) {
	store := NewMemoryStore()
	hook := StoreHook{Store: store}
	ctx := context.Background()

	event := activity.BuildPredictionRecordedEvent(activity.PredictionInput{
		RecordID:   "rec-1",
		Identity:   drivalyze.Identity{UserID: "u1", Email: "u1@example.com"},
		Selection:  record("", "", 0).Selection(),
		Price:      700000,
		OccurredAt: base,
	})
	require.NoError(t, hook.Notify(ctx, event))
	require.NoError(t, hook.Notify(ctx, activity.BuildSessionSignedInEvent(activity.SessionInput{
		Identity: drivalyze.Identity{UserID: "u1"},
	})))

	got, err := store.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Record{
		ID:             "rec-1",
		UserID:         "u1",
		UserEmail:      "u1@example.com",
		Brand:          "Honda",
		Model:          "City",
		Year:           2021,
		FuelType:       "Petrol",
		Transmission:   "Manual",
		PredictedPrice: 700000,
		Timestamp:      base,
	}, got[0])
}

func TestRecordFromEventAssignsMissingID(t *testing.T) {
	event := activity.BuildPredictionRecordedEvent(activity.PredictionInput{
		Selection:  record("", "", 0).Selection(),
		OccurredAt: base,
	})
	rec, ok := RecordFromEvent(event)
	require.True(t, ok)
	assert.NotEmpty(t, rec.ID)
}
