package session

import "context"

// Provider is the external identity provider. Every failing method returns a
// *drivalyze.AuthError carrying a provider code such as CodeWrongPassword.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password string) (Identity, error)
	// SignInWithIDP exchanges a federated credential (for example a Google
	// ID token) for a session.
	SignInWithIDP(ctx context.Context, providerID, idToken string) (Identity, error)
	SignOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, displayName string) (Identity, error)
	Reauthenticate(ctx context.Context, password string) error
	UpdateEmail(ctx context.Context, email string) (Identity, error)
	UpdatePassword(ctx context.Context, password string) error
	// Subscribe registers fn for sign-in state pushes. A nil identity means
	// signed out. The returned func removes the subscription.
	Subscribe(fn func(*Identity)) (unsubscribe func())
}

// Provider error codes.
const (
	CodeUserNotFound        = "auth/user-not-found"
	CodeWrongPassword       = "auth/wrong-password"
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeTooManyRequests     = "auth/too-many-requests"
	CodeInvalidEmail        = "auth/invalid-email"
	CodeEmailAlreadyInUse   = "auth/email-already-in-use"
	CodeWeakPassword        = "auth/weak-password"
	CodeUserDisabled        = "auth/user-disabled"
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeUserTokenExpired    = "auth/user-token-expired"
	CodeNetworkFailed       = "auth/network-request-failed"
	CodePopupClosedByUser   = "auth/popup-closed-by-user"
	CodeCancelledPopup      = "auth/cancelled-popup-request"
	CodeNoCurrentUser       = "auth/no-current-user"
	CodeInvalidInput        = "auth/invalid-input"
	CodeInternal            = "auth/internal-error"
)
