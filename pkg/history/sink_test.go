package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/activity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var hondaCity = drivalyze.Selection{
	Brand: "Honda", Model: "City", Year: 2021, FuelType: "Petrol", Transmission: "Manual",
}

func fixedSinkOptions() []SinkOption {
	return []SinkOption{
		WithSinkClock(func() time.Time { return base }),
		WithIDGenerator(func() string { return "rec-fixed" }),
	}
}

func TestSinkRecordsThroughStore(t *testing.T) {
	store := NewMemoryStore()
	capture := &activity.CaptureHook{}
	sink := NewStoreSink(store, activity.Hooks{capture}, fixedSinkOptions()...)

	sink.Record(context.Background(), hondaCity, 845000, drivalyze.Identity{UserID: "u1", Email: "u1@example.com"})
	require.NoError(t, sink.Close(context.Background()))

	got, err := store.Recent(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rec-fixed", got[0].ID)
	assert.Equal(t, hondaCity, got[0].Selection())
	assert.Equal(t, base, got[0].Timestamp)

	events := capture.Events()
	require.Len(t, events, 1)
	assert.Equal(t, activity.DefaultChannel, events[0].Channel)
}

func TestSinkSkipsAnonymousByDefault(t *testing.T) {
	store := NewMemoryStore()
	sink := NewStoreSink(store, nil)
	sink.Record(context.Background(), hondaCity, 1, drivalyze.Identity{})
	require.NoError(t, sink.Close(context.Background()))
	assert.Equal(t, 0, store.Len())

	anon := NewStoreSink(store, nil, WithAnonymous(true))
	anon.Record(context.Background(), hondaCity, 1, drivalyze.Identity{})
	require.NoError(t, anon.Close(context.Background()))
	assert.Equal(t, 1, store.Len())
}

func TestSinkFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	failing := activity.HookFunc(func(context.Context, activity.Event) error {
		return errors.New("disk full")
	})
	sink := NewSink(
		activity.NewEmitter(activity.Hooks{failing}, activity.Config{Enabled: true}),
		append(fixedSinkOptions(), WithSinkLogger(zap.New(core)))...,
	)

	sink.Record(context.Background(), hondaCity, 1, drivalyze.Identity{UserID: "u1"})
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.FilterMessage("failed to persist prediction").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "rec-fixed", entries[0].ContextMap()["record_id"])
}

func TestSinkRecordReturnsBeforeWriteCompletes(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	blocking := activity.HookFunc(func(context.Context, activity.Event) error {
		<-release
		return nil
	})
	sink := NewSink(activity.NewEmitter(activity.Hooks{blocking}, activity.Config{Enabled: true}))
	t.Cleanup(func() { once.Do(func() { close(release) }) })

	returned := make(chan struct{})
	go func() {
		sink.Record(context.Background(), hondaCity, 1, drivalyze.Identity{UserID: "u1"})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on the hook")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sink.Close(ctx), context.DeadlineExceeded)

	once.Do(func() { close(release) })
	require.NoError(t, sink.Close(context.Background()))
}

func TestSinkDropsAfterClose(t *testing.T) {
	store := NewMemoryStore()
	sink := NewStoreSink(store, nil)
	require.NoError(t, sink.Close(context.Background()))
	sink.Record(context.Background(), hondaCity, 1, drivalyze.Identity{UserID: "u1"})
	require.NoError(t, sink.Close(context.Background()))
	assert.Equal(t, 0, store.Len())
}

func TestSinkRecordSurvivesCallerCancellation(t *testing.T) {
	store := NewMemoryStore()
	sink := NewStoreSink(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Record(ctx, hondaCity, 1, drivalyze.Identity{UserID: "u1"})
	require.NoError(t, sink.Close(context.Background()))
	assert.Equal(t, 1, store.Len())
}
