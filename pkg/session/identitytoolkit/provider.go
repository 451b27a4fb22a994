// Package identitytoolkit implements session.Provider against the Google
// Identity Toolkit REST API (the backend of Firebase Authentication).
package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/session"
)

// DefaultEndpoint is the public Identity Toolkit v1 base URL.
const DefaultEndpoint = "https://identitytoolkit.googleapis.com/v1"

// Provider talks to Identity Toolkit and keeps the current user's ID token
// in memory.
type Provider struct {
	apiKey     string
	endpoint   string
	requestURI string
	http       *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	user        *currentUser
	subscribers map[int]func(*session.Identity)
	nextSub     int
}

type currentUser struct {
	identity session.Identity
	idToken  string
}

var _ session.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint overrides the API base URL, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		if endpoint != "" {
			p.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.http = client
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRequestURI sets the continue URI sent with federated sign-ins.
func WithRequestURI(uri string) Option {
	return func(p *Provider) {
		if uri != "" {
			p.requestURI = uri
		}
	}
}

// New builds a Provider for the project identified by apiKey.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:      apiKey,
		endpoint:    DefaultEndpoint,
		requestURI:  "http://localhost",
		http:        http.DefaultClient,
		logger:      zap.NewNop(),
		subscribers: map[int]func(*session.Identity){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

type authResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (session.Identity, error) {
	resp, err := p.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return session.Identity{}, err
	}
	return p.signedIn(resp)
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (session.Identity, error) {
	resp, err := p.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return session.Identity{}, err
	}
	if resp.DisplayName == "" {
		resp.DisplayName, _, _ = strings.Cut(email, "@")
	}
	return p.signedIn(resp)
}

func (p *Provider) SignInWithIDP(ctx context.Context, providerID, idToken string) (session.Identity, error) {
	if idToken == "" {
		return session.Identity{}, &drivalyze.AuthError{Code: session.CodePopupClosedByUser}
	}
	postBody := url.Values{"id_token": {idToken}, "providerId": {providerID}}.Encode()
	resp, err := p.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody,
		"requestUri":          p.requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	})
	if err != nil {
		return session.Identity{}, err
	}
	return p.signedIn(resp)
}

// SignOut forgets the local token. Identity Toolkit has no server-side
// sign-out for ID tokens, so this never fails.
func (p *Provider) SignOut(context.Context) error {
	p.mu.Lock()
	p.user = nil
	p.mu.Unlock()
	p.publish(nil)
	return nil
}

func (p *Provider) UpdateProfile(ctx context.Context, displayName string) (session.Identity, error) {
	return p.update(ctx, map[string]any{"displayName": displayName})
}

func (p *Provider) UpdateEmail(ctx context.Context, email string) (session.Identity, error) {
	return p.update(ctx, map[string]any{"email": email})
}

func (p *Provider) UpdatePassword(ctx context.Context, password string) error {
	_, err := p.update(ctx, map[string]any{"password": password})
	return err
}

// Reauthenticate signs in again with the current email, refreshing the token
// used for sensitive updates.
func (p *Provider) Reauthenticate(ctx context.Context, password string) error {
	user, err := p.current()
	if err != nil {
		return err
	}
	resp, err := p.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             user.identity.Email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return err
	}
	if resp.LocalID != "" && resp.LocalID != user.identity.UserID {
		return &drivalyze.AuthError{Code: session.CodeUserNotFound, Message: "credential belongs to another user"}
	}
	p.mu.Lock()
	if p.user != nil {
		p.user.idToken = resp.IDToken
	}
	p.mu.Unlock()
	return nil
}

func (p *Provider) Subscribe(fn func(*session.Identity)) func() {
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

func (p *Provider) update(ctx context.Context, fields map[string]any) (session.Identity, error) {
	user, err := p.current()
	if err != nil {
		return session.Identity{}, err
	}
	fields["idToken"] = user.idToken
	fields["returnSecureToken"] = true
	resp, err := p.call(ctx, "accounts:update", fields)
	if err != nil {
		return session.Identity{}, err
	}
	if resp.IDToken == "" {
		resp.IDToken = user.idToken
	}
	if resp.LocalID == "" {
		resp.LocalID = user.identity.UserID
	}
	return p.signedIn(resp)
}

func (p *Provider) current() (currentUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return currentUser{}, &drivalyze.AuthError{Code: session.CodeNoCurrentUser}
	}
	return *p.user, nil
}

// signedIn stores the new token and identity and notifies subscribers.
// Fields missing from the response are read from the token claims.
func (p *Provider) signedIn(resp authResponse) (session.Identity, error) {
	identity := session.Identity{UserID: resp.LocalID, Email: resp.Email, DisplayName: resp.DisplayName}
	if claims, err := parseClaims(resp.IDToken); err == nil {
		if identity.UserID == "" {
			identity.UserID = claims.userID()
		}
		if identity.Email == "" {
			identity.Email = claims.Email
		}
		if identity.DisplayName == "" {
			identity.DisplayName = claims.Name
		}
	} else if resp.IDToken != "" {
		p.logger.Debug("could not read id token claims", zap.Error(err))
	}
	if identity.UserID == "" {
		return session.Identity{}, &drivalyze.AuthError{Code: session.CodeInternal, Message: "identity provider returned no user id"}
	}

	p.mu.Lock()
	p.user = &currentUser{identity: identity, idToken: resp.IDToken}
	p.mu.Unlock()
	p.publish(&identity)
	return identity, nil
}

func (p *Provider) publish(identity *session.Identity) {
	p.mu.Lock()
	subs := make([]func(*session.Identity), 0, len(p.subscribers))
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

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) call(ctx context.Context, method string, body map[string]any) (authResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return authResponse{}, &drivalyze.AuthError{Code: session.CodeInternal, Err: err}
	}
	target := p.endpoint + "/" + method + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return authResponse{}, &drivalyze.AuthError{Code: session.CodeInternal, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.http.Do(req)
	if err != nil {
		return authResponse{}, &drivalyze.AuthError{
			Code: session.CodeNetworkFailed,
			Err:  &drivalyze.UnavailableError{Op: "identitytoolkit." + method, Err: err},
		}
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return authResponse{}, &drivalyze.AuthError{Code: session.CodeNetworkFailed, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		code := MapErrorCode(apiErr.Error.Message)
		p.logger.Debug("identity toolkit request failed",
			zap.String("method", method),
			zap.Int("status", res.StatusCode),
			zap.String("code", code),
		)
		return authResponse{}, &drivalyze.AuthError{
			Code: code,
			Err:  &drivalyze.UnavailableError{Op: "identitytoolkit." + method, Status: res.StatusCode, Err: errors.New(apiErr.Error.Message)},
		}
	}

	var out authResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return authResponse{}, &drivalyze.AuthError{
			Code: session.CodeInternal,
			Err:  &drivalyze.MalformedResponseError{Op: "identitytoolkit." + method, Err: err},
		}
	}
	return out, nil
}

var restCodes = map[string]string{
	"EMAIL_NOT_FOUND":                  session.CodeUserNotFound,
	"INVALID_PASSWORD":                 session.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":        session.CodeInvalidCredential,
	"USER_DISABLED":                    session.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER":      session.CodeTooManyRequests,
	"INVALID_EMAIL":                    session.CodeInvalidEmail,
	"MISSING_EMAIL":                    session.CodeInvalidEmail,
	"EMAIL_EXISTS":                     session.CodeEmailAlreadyInUse,
	"WEAK_PASSWORD":                    session.CodeWeakPassword,
	"MISSING_PASSWORD":                 session.CodeWrongPassword,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN":   session.CodeRequiresRecentLogin,
	"TOKEN_EXPIRED":                    session.CodeUserTokenExpired,
	"INVALID_ID_TOKEN":                 session.CodeUserTokenExpired,
	"USER_NOT_FOUND":                   session.CodeUserNotFound,
	"INVALID_IDP_RESPONSE":             session.CodeInvalidCredential,
	"FEDERATED_USER_ID_ALREADY_LINKED": session.CodeEmailAlreadyInUse,
}

// MapErrorCode converts a REST error message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" into an
// "auth/..." code.
func MapErrorCode(message string) string {
	key, _, _ := strings.Cut(message, " ")
	key = strings.TrimSpace(strings.TrimSuffix(key, ":"))
	if code, ok := restCodes[key]; ok {
		return code
	}
	return session.CodeInternal
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func (c tokenClaims) userID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// parseClaims reads the claims of an ID token without verifying the
// signature. The token only fills identity fields locally; it is never
// trusted for authorization here.
func parseClaims(token string) (tokenClaims, error) {
	if token == "" {
		return tokenClaims{}, fmt.Errorf("identitytoolkit: empty token")
	}
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return tokenClaims{}, fmt.Errorf("identitytoolkit: parse token: %w", err)
	}
	return claims, nil
}
