package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-drivalyze"
)

// MemoryProvider is an in-process Provider for tests, demos and offline use.
// It keeps accounts in memory and enforces the same codes a hosted provider
// returns.
type MemoryProvider struct {
	mu          sync.Mutex
	accounts    map[string]*memoryAccount
	current     *memoryAccount
	subscribers map[int]func(*Identity)
	nextSub     int
	// FailSignOut makes SignOut return a network error after clearing.
	FailSignOut bool
}

type memoryAccount struct {
	identity Identity
	password string
}

var _ Provider = (*MemoryProvider)(nil)

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts:    map[string]*memoryAccount{},
		subscribers: map[int]func(*Identity){},
	}
}

func authErr(code string) error {
	return &drivalyze.AuthError{Code: code}
}

func (p *MemoryProvider) SignIn(_ context.Context, email, password string) (Identity, error) {
	p.mu.Lock()
	account, ok := p.accounts[strings.ToLower(email)]
	if !ok {
		p.mu.Unlock()
		return Identity{}, authErr(CodeUserNotFound)
	}
	if account.password != password {
		p.mu.Unlock()
		return Identity{}, authErr(CodeWrongPassword)
	}
	p.current = account
	identity := account.identity
	p.mu.Unlock()
	p.publish(&identity)
	return identity, nil
}

func (p *MemoryProvider) SignUp(_ context.Context, email, password string) (Identity, error) {
	if !ValidEmail(email) {
		return Identity{}, authErr(CodeInvalidEmail)
	}
	if len(password) < MinPasswordLength {
		return Identity{}, authErr(CodeWeakPassword)
	}
	key := strings.ToLower(email)
	p.mu.Lock()
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return Identity{}, authErr(CodeEmailAlreadyInUse)
	}
	account := &memoryAccount{
		identity: Identity{UserID: uuid.NewString(), Email: email, DisplayName: defaultDisplayName(email)},
		password: password,
	}
	p.accounts[key] = account
	p.current = account
	identity := account.identity
	p.mu.Unlock()
	p.publish(&identity)
	return identity, nil
}

// SignInWithIDP treats idToken as the federated email address. An empty
// token behaves like a dismissed popup.
func (p *MemoryProvider) SignInWithIDP(_ context.Context, _ string, idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, authErr(CodePopupClosedByUser)
	}
	key := strings.ToLower(idToken)
	p.mu.Lock()
	account, ok := p.accounts[key]
	if !ok {
		account = &memoryAccount{identity: Identity{
			UserID:      uuid.NewString(),
			Email:       idToken,
			DisplayName: defaultDisplayName(idToken),
		}}
		p.accounts[key] = account
	}
	p.current = account
	identity := account.identity
	p.mu.Unlock()
	p.publish(&identity)
	return identity, nil
}

func (p *MemoryProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.current = nil
	fail := p.FailSignOut
	p.mu.Unlock()
	p.publish(nil)
	if fail {
		return authErr(CodeNetworkFailed)
	}
	return nil
}

func (p *MemoryProvider) UpdateProfile(_ context.Context, displayName string) (Identity, error) {
	return p.updateCurrent(func(a *memoryAccount) error {
		a.identity.DisplayName = displayName
		return nil
	})
}

func (p *MemoryProvider) Reauthenticate(_ context.Context, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return authErr(CodeNoCurrentUser)
	}
	if p.current.password != password {
		return authErr(CodeWrongPassword)
	}
	return nil
}

func (p *MemoryProvider) UpdateEmail(_ context.Context, email string) (Identity, error) {
	if !ValidEmail(email) {
		return Identity{}, authErr(CodeInvalidEmail)
	}
	p.mu.Lock()
	_, taken := p.accounts[strings.ToLower(email)]
	p.mu.Unlock()
	if taken {
		return Identity{}, authErr(CodeEmailAlreadyInUse)
	}
	return p.updateCurrent(func(a *memoryAccount) error {
		delete(p.accounts, strings.ToLower(a.identity.Email))
		a.identity.Email = email
		p.accounts[strings.ToLower(email)] = a
		return nil
	})
}

func (p *MemoryProvider) UpdatePassword(_ context.Context, password string) error {
	if len(password) < MinPasswordLength {
		return authErr(CodeWeakPassword)
	}
	_, err := p.updateCurrent(func(a *memoryAccount) error {
		a.password = password
		return nil
	})
	return err
}

func (p *MemoryProvider) Subscribe(fn func(*Identity)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

func (p *MemoryProvider) updateCurrent(fn func(*memoryAccount) error) (Identity, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return Identity{}, authErr(CodeNoCurrentUser)
	}
	if err := fn(p.current); err != nil {
		p.mu.Unlock()
		return Identity{}, err
	}
	identity := p.current.identity
	p.mu.Unlock()
	p.publish(&identity)
	return identity, nil
}

func (p *MemoryProvider) publish(identity *Identity) {
	p.mu.Lock()
	subs := make([]func(*Identity), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		if identity == nil {
			fn(nil)
			continue
		}
		copied := *identity
		fn(&copied)
	}
}

func defaultDisplayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
