package drivalyze

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTransitionJSONRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	resolver := NewResolver(nil, nil, WithClock(func() time.Time { return at }))
	defer resolver.Close()
	resolver.SetTransmission("Manual")

	transitions := resolver.Transitions()
	require.Len(t, transitions, 1)

	payload, err := transitions[0].ToJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{
		"seq": 1,
		"event": "set_transmission",
		"field": "transmission",
		"outcome": "applied",
		"selection": {"brand": "", "model": "", "fuel_type": "", "year": 0, "transmission": "Manual"},
		"at": "2024-03-01T10:00:00Z"
	}`, string(payload))

	decoded, err := TransitionFromJSON(payload)
	require.NoError(t, err)
	if diff := cmp.Diff(transitions[0], decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTransitionFromJSONRejectsGarbage(t *testing.T) {
	_, err := TransitionFromJSON([]byte("{"))
	require.Error(t, err)
}
