package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/activity"
	"github.com/goliatone/go-drivalyze/pkg/state"
)

var fixedNow = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T, provider Provider, store state.Store[Session], opts ...GateOption) *Gate {
	t.Helper()
	opts = append([]GateOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	gate, err := NewGate(context.Background(), provider, store, opts...)
	require.NoError(t, err)
	t.Cleanup(gate.Close)
	return gate
}

func authCode(t *testing.T, err error) *drivalyze.AuthError {
	t.Helper()
	var auth *drivalyze.AuthError
	require.True(t, errors.As(err, &auth), "expected AuthError, got %v", err)
	return auth
}

func TestGateSignUpSignInPersists(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	store := state.NewMemoryStore[Session]()
	gate := newTestGate(t, provider, store)

	assert.False(t, gate.IsAuthenticated())
	assert.Equal(t, Decision{Redirect: "/login?next=%2Fpredict"}, gate.Authorize("/predict"))

	identity, err := gate.SignUp(ctx, "asha@example.com", "secret1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "asha", identity.DisplayName)

	current := gate.Current()
	assert.True(t, current.IsAuthenticated)
	assert.Equal(t, identity.UserID, current.UserID)
	assert.Equal(t, "asha@example.com", current.UserEmail)
	assert.Equal(t, fixedNow, current.UpdatedAt)
	assert.Equal(t, Decision{Allow: true}, gate.Authorize("/predict"))
	assert.Equal(t, Decision{Redirect: "/"}, gate.Authorize("/login"))

	restored := newTestGate(t, nil, store)
	assert.Equal(t, current, restored.Current())
	assert.Equal(t, identity, restored.Identity())
}

func TestGateMirrorsProviderPushes(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	_, err := provider.SignUp(ctx, "dev@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, provider.SignOut(ctx))

	gate := newTestGate(t, provider, state.NewMemoryStore[Session]())
	var seen []Session
	unsubscribe := gate.OnChange(func(s Session) { seen = append(seen, s) })

	_, err = provider.SignIn(ctx, "dev@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, gate.IsAuthenticated())

	require.NoError(t, provider.SignOut(ctx))
	assert.False(t, gate.IsAuthenticated())
	require.Len(t, seen, 2)

	unsubscribe()
	_, err = provider.SignIn(ctx, "dev@example.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestGateSignOutClearsEvenWhenProviderFails(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	store := state.NewMemoryStore[Session]()
	gate := newTestGate(t, provider, store)

	_, err := gate.SignUp(ctx, "x@example.com", "secret1", "secret1")
	require.NoError(t, err)

	provider.FailSignOut = true
	err = gate.SignOut(ctx)
	require.Error(t, err)
	assert.Equal(t, CodeNetworkFailed, authCode(t, err).Code)

	assert.Equal(t, Session{UpdatedAt: fixedNow}, gate.Current())
	stored, _, ok, err := store.Load(ctx, DefaultRef)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, stored.IsAuthenticated)
	assert.Empty(t, stored.UserEmail)
}

type failingStore struct {
	*state.MemoryStore[Session]
}

func (failingStore) Save(context.Context, state.Ref, Session, state.Meta) (state.Meta, error) {
	return state.Meta{}, errors.New("disk full")
}

func TestGateSignOutClearsMemoryWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	gate := newTestGate(t, provider, failingStore{state.NewMemoryStore[Session]()})

	_, err := provider.SignUp(ctx, "x@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, gate.IsAuthenticated())

	err = gate.SignOut(ctx)
	require.Error(t, err)
	assert.False(t, gate.IsAuthenticated())
}

func TestGateLocalValidationNeverReachesProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	gate := newTestGate(t, provider, state.NewMemoryStore[Session]())

	cases := []struct {
		name string
		run  func() error
		want string
	}{
		{"sign in empty", func() error { _, err := gate.SignIn(ctx, "", "x"); return err }, msgFillAll},
		{"sign in bad email", func() error { _, err := gate.SignIn(ctx, "nope", "secret1"); return err }, msgInvalidEmail},
		{"sign up mismatch", func() error { _, err := gate.SignUp(ctx, "a@b.co", "secret1", "secret2"); return err }, msgPasswordsDiffer},
		{"sign up short", func() error { _, err := gate.SignUp(ctx, "a@b.co", "abc", "abc"); return err }, msgPasswordShort},
		{"profile blank", func() error { _, err := gate.UpdateProfile(ctx, "   "); return err }, msgNameEmpty},
		{"email missing password", func() error { _, err := gate.UpdateEmail(ctx, "n@b.co", ""); return err }, msgFillRequired},
		{"password mismatch", func() error { return gate.UpdatePassword(ctx, "old", "secret1", "secret2") }, msgNewDiffer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := authCode(t, tc.run())
			assert.Equal(t, CodeInvalidInput, auth.Code)
			assert.Equal(t, tc.want, auth.Message)
			assert.Equal(t, tc.want, drivalyze.UserMessage(auth))
		})
	}
	assert.False(t, gate.IsAuthenticated())
}

func TestGateMapsProviderCodes(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	gate := newTestGate(t, provider, state.NewMemoryStore[Session]())

	_, err := gate.SignIn(ctx, "ghost@example.com", "secret1")
	auth := authCode(t, err)
	assert.Equal(t, CodeUserNotFound, auth.Code)
	assert.Equal(t, "No user found with this email address.", auth.Message)

	_, err = gate.SignUp(ctx, "taken@example.com", "secret1", "secret1")
	require.NoError(t, err)
	require.NoError(t, gate.SignOut(ctx))

	_, err = gate.SignUp(ctx, "taken@example.com", "secret1", "secret1")
	assert.Equal(t, "This email is already registered. Please login instead.", authCode(t, err).Message)

	_, err = gate.SignIn(ctx, "taken@example.com", "wrong-pass")
	assert.Equal(t, "Incorrect password. Please try again.", authCode(t, err).Message)

	_, err = gate.SignInWithIDP(ctx, "google.com", "")
	auth = authCode(t, err)
	assert.True(t, IsSilent(auth.Code))
	assert.Empty(t, auth.Message)
}

func TestGateProfileUpdates(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	gate := newTestGate(t, provider, state.NewMemoryStore[Session]())

	_, err := gate.UpdateProfile(ctx, "Nobody")
	assert.Equal(t, CodeNoCurrentUser, authCode(t, err).Code)

	_, err = gate.SignUp(ctx, "p@example.com", "secret1", "secret1")
	require.NoError(t, err)

	identity, err := gate.UpdateProfile(ctx, "  Priya  ")
	require.NoError(t, err)
	assert.Equal(t, "Priya", identity.DisplayName)
	assert.Equal(t, "Priya", gate.Current().DisplayName)

	_, err = gate.UpdateEmail(ctx, "new@example.com", "wrong-pass")
	assert.Equal(t, CodeWrongPassword, authCode(t, err).Code)

	identity, err = gate.UpdateEmail(ctx, "new@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", gate.Current().UserEmail)

	require.NoError(t, gate.UpdatePassword(ctx, "secret1", "secret2", "secret2"))
	require.NoError(t, gate.SignOut(ctx))
	_, err = gate.SignIn(ctx, identity.Email, "secret2")
	require.NoError(t, err)
}

func TestGateEmitsSessionActivity(t *testing.T) {
	ctx := context.Background()
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true, Channel: "sessions"})
	gate := newTestGate(t, NewMemoryProvider(), state.NewMemoryStore[Session](), WithActivity(emitter))

	identity, err := gate.SignUp(ctx, "e@example.com", "secret1", "secret1")
	require.NoError(t, err)
	require.NoError(t, gate.SignOut(ctx))

	events := capture.Events()
	require.Len(t, events, 2)
	assert.Equal(t, activity.VerbSessionSignedIn, events[0].Verb)
	assert.Equal(t, identity.UserID, events[0].UserID)
	assert.Equal(t, activity.VerbSessionSignedOut, events[1].Verb)
	assert.Equal(t, identity.UserID, events[1].ObjectID)
	assert.Equal(t, "sessions", events[1].Channel)
}

func TestNewGateDiscardsInvalidStoredSession(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore[Session]()
	_, err := store.Save(ctx, DefaultRef, Session{IsAuthenticated: true}, state.Meta{})
	require.NoError(t, err)

	gate := newTestGate(t, nil, store)
	assert.False(t, gate.IsAuthenticated())

	_, err = NewGate(ctx, nil, nil)
	require.Error(t, err)
}

func TestAuthMessageFallbacks(t *testing.T) {
	assert.Equal(t, "Failed to sign in. Please check your credentials and try again.", AuthMessage(OpSignIn, "auth/unknown"))
	assert.Equal(t, "Failed to create an account. Please try again.", AuthMessage(OpSignUp, ""))
	assert.Equal(t, "Failed to sign in with Google. Please try again.", AuthMessage(OpSignInWithIDP, CodeInternal))
	assert.Equal(t, "Something went wrong. Please try again.", AuthMessage("other", ""))
}
