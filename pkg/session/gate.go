package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/activity"
	"github.com/goliatone/go-drivalyze/pkg/state"
)

// DefaultRef is where the session is stored unless WithRef says otherwise.
var DefaultRef = state.Ref{Domain: "session", Key: "current"}

// Gate keeps the local Session in step with a Provider.
type Gate struct {
	provider Provider
	store    state.Store[Session]
	ref      state.Ref
	logger   *zap.Logger
	emitter  *activity.Emitter
	now      func() time.Time

	mu          sync.RWMutex
	current     Session
	listeners   map[int]func(Session)
	nextID      int
	unsubscribe func()
}

// GateOption configures a Gate.
type GateOption func(*Gate)

func WithRef(ref state.Ref) GateOption {
	return func(g *Gate) {
		g.ref = ref
	}
}

func WithLogger(logger *zap.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithActivity publishes session.signed_in and session.signed_out events.
func WithActivity(emitter *activity.Emitter) GateOption {
	return func(g *Gate) {
		g.emitter = emitter
	}
}

func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate loads the persisted session from store and subscribes to provider
// pushes. A nil provider gives a read-only gate over the stored session.
func NewGate(ctx context.Context, provider Provider, store state.Store[Session], opts ...GateOption) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	g := &Gate{
		provider:  provider,
		store:     store,
		ref:       DefaultRef,
		logger:    zap.NewNop(),
		now:       time.Now,
		listeners: map[int]func(Session){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	current, _, err := state.LoadOrDefault(ctx, store, g.ref, Session{})
	if err != nil {
		return nil, fmt.Errorf("session: restore: %w", err)
	}
	if err := current.Validate(); err != nil {
		g.logger.Warn("discarding invalid stored session", zap.Error(err))
		current = Session{}
	}
	g.current = current

	if provider != nil {
		g.unsubscribe = provider.Subscribe(g.onPush)
	}
	return g, nil
}

// Close stops listening to provider pushes.
func (g *Gate) Close() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns the mirrored session.
func (g *Gate) Current() Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

func (g *Gate) IsAuthenticated() bool {
	return g.Current().IsAuthenticated
}

// Identity returns the signed-in identity, zero when signed out. It has the
// shape expected by drivalyze.WithIdentity.
func (g *Gate) Identity() drivalyze.Identity {
	return g.Current().Identity()
}

// Authorize applies Authorize with the current sign-in state.
func (g *Gate) Authorize(target string) Decision {
	return Authorize(g.IsAuthenticated(), target)
}

// OnChange registers fn for every session change. The returned func
// removes it.
func (g *Gate) OnChange(fn func(Session)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gate) SignIn(ctx context.Context, email, password string) (Identity, error) {
	if err := ValidateSignIn(email, password); err != nil {
		return Identity{}, err
	}
	provider, err := g.requireProvider()
	if err != nil {
		return Identity{}, err
	}
	identity, err := provider.SignIn(ctx, email, password)
	if err != nil {
		return Identity{}, describe(OpSignIn, err)
	}
	return identity, g.mirror(ctx, &identity, "password")
}

func (g *Gate) SignUp(ctx context.Context, email, password, confirm string) (Identity, error) {
	if err := ValidateSignUp(email, password, confirm); err != nil {
		return Identity{}, err
	}
	provider, err := g.requireProvider()
	if err != nil {
		return Identity{}, err
	}
	identity, err := provider.SignUp(ctx, email, password)
	if err != nil {
		return Identity{}, describe(OpSignUp, err)
	}
	return identity, g.mirror(ctx, &identity, "password")
}

// SignInWithIDP signs in with a federated credential. Dismissed flows
// return an AuthError with an empty message; see IsSilent.
func (g *Gate) SignInWithIDP(ctx context.Context, providerID, idToken string) (Identity, error) {
	provider, err := g.requireProvider()
	if err != nil {
		return Identity{}, err
	}
	identity, err := provider.SignInWithIDP(ctx, providerID, idToken)
	if err != nil {
		return Identity{}, describe(OpSignInWithIDP, err)
	}
	return identity, g.mirror(ctx, &identity, providerID)
}

// SignOut clears the local session even when the provider call fails. The
// provider error is still returned so the caller can report it.
func (g *Gate) SignOut(ctx context.Context) error {
	var providerErr error
	if g.provider != nil {
		if err := g.provider.SignOut(ctx); err != nil {
			g.logger.Warn("provider sign-out failed, clearing local session anyway", zap.Error(err))
			providerErr = describe(OpSignOut, err)
		}
	}
	return errors.Join(providerErr, g.mirror(ctx, nil, ""))
}

func (g *Gate) UpdateProfile(ctx context.Context, displayName string) (Identity, error) {
	name, err := ValidateDisplayName(displayName)
	if err != nil {
		return Identity{}, err
	}
	provider, err := g.requireSignedIn()
	if err != nil {
		return Identity{}, err
	}
	identity, err := provider.UpdateProfile(ctx, name)
	if err != nil {
		return Identity{}, describe(OpProfile, err)
	}
	return identity, g.mirror(ctx, &identity, "")
}

// UpdateEmail re-authenticates with currentPassword, then changes the email.
func (g *Gate) UpdateEmail(ctx context.Context, email, currentPassword string) (Identity, error) {
	if err := ValidateEmailChange(email, currentPassword); err != nil {
		return Identity{}, err
	}
	provider, err := g.requireSignedIn()
	if err != nil {
		return Identity{}, err
	}
	if err := provider.Reauthenticate(ctx, currentPassword); err != nil {
		return Identity{}, describe(OpProfile, err)
	}
	identity, err := provider.UpdateEmail(ctx, email)
	if err != nil {
		return Identity{}, describe(OpProfile, err)
	}
	return identity, g.mirror(ctx, &identity, "")
}

// UpdatePassword re-authenticates with currentPassword, then sets the new one.
func (g *Gate) UpdatePassword(ctx context.Context, currentPassword, newPassword, confirm string) error {
	if err := ValidatePasswordChange(currentPassword, newPassword, confirm); err != nil {
		return err
	}
	provider, err := g.requireSignedIn()
	if err != nil {
		return err
	}
	if err := provider.Reauthenticate(ctx, currentPassword); err != nil {
		return describe(OpProfile, err)
	}
	if err := provider.UpdatePassword(ctx, newPassword); err != nil {
		return describe(OpProfile, err)
	}
	return nil
}

func (g *Gate) requireProvider() (Provider, error) {
	if g.provider == nil {
		return nil, &drivalyze.AuthError{Code: CodeInternal, Message: AuthMessage("", "")}
	}
	return g.provider, nil
}

func (g *Gate) requireSignedIn() (Provider, error) {
	provider, err := g.requireProvider()
	if err != nil {
		return nil, err
	}
	if !g.IsAuthenticated() {
		return nil, &drivalyze.AuthError{Code: CodeNoCurrentUser, Message: "Please sign in first."}
	}
	return provider, nil
}

func (g *Gate) onPush(identity *Identity) {
	if err := g.mirror(context.Background(), identity, ""); err != nil {
		g.logger.Error("failed to mirror provider session", zap.Error(err))
	}
}

// mirror replaces the local session with identity (nil for signed out),
// persists it and notifies listeners. The in-memory copy is updated before
// persisting so a storage failure never leaves a stale signed-in state.
func (g *Gate) mirror(ctx context.Context, identity *Identity, method string) error {
	now := g.now()
	next := signedOut(now)
	if identity != nil && identity.UserID != "" {
		next = signedIn(*identity, now)
	}

	g.mu.Lock()
	prev := g.current
	g.current = next
	listeners := make([]func(Session), 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.mu.Unlock()

	var persistErr error
	if _, _, err := state.Mutate(ctx, g.store, g.ref, state.Meta{}, func(s *Session) error {
		*s = next
		return nil
	}); err != nil {
		persistErr = fmt.Errorf("session: persist: %w", err)
		g.logger.Error("failed to persist session", zap.Error(err))
	}

	if sameSession(prev, next) {
		return persistErr
	}
	for _, fn := range listeners {
		fn(next)
	}
	g.emitTransition(ctx, prev, next, method)
	return persistErr
}

func (g *Gate) emitTransition(ctx context.Context, prev, next Session, method string) {
	if prev.IsAuthenticated == next.IsAuthenticated && prev.UserID == next.UserID {
		return
	}
	var event activity.Event
	if next.IsAuthenticated {
		event = activity.BuildSessionSignedInEvent(activity.SessionInput{
			Identity:   next.Identity(),
			Provider:   method,
			OccurredAt: next.UpdatedAt,
		})
	} else {
		event = activity.BuildSessionSignedOutEvent(activity.SessionInput{
			Identity:   prev.Identity(),
			OccurredAt: next.UpdatedAt,
		})
	}
	if err := g.emitter.Emit(ctx, event); err != nil {
		g.logger.Warn("session activity hook failed", zap.String("verb", event.Verb), zap.Error(err))
	}
}

func sameSession(a, b Session) bool {
	return a.IsAuthenticated == b.IsAuthenticated &&
		a.UserID == b.UserID &&
		a.UserEmail == b.UserEmail &&
		a.DisplayName == b.DisplayName
}
