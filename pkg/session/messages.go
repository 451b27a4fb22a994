package session

import (
	"errors"

	"github.com/goliatone/go-drivalyze"
)

// Op names the user action an auth error came from. Messages differ per
// action for the same code.
type Op string

const (
	OpSignIn        Op = "sign-in"
	OpSignUp        Op = "sign-up"
	OpSignInWithIDP Op = "sign-in-idp"
	OpProfile       Op = "profile"
	OpSignOut       Op = "sign-out"
)

var fallbackMessages = map[Op]string{
	OpSignIn:        "Failed to sign in. Please check your credentials and try again.",
	OpSignUp:        "Failed to create an account. Please try again.",
	OpSignInWithIDP: "Failed to sign in with Google. Please try again.",
	OpProfile:       "Failed to update your profile. Please try again.",
	OpSignOut:       "Failed to sign out. Please try again.",
}

var codeMessages = map[Op]map[string]string{
	OpSignIn: {
		CodeUserNotFound:    "No user found with this email address.",
		CodeWrongPassword:   "Incorrect password. Please try again.",
		CodeTooManyRequests: "Too many failed attempts. Please try again later.",
		CodeInvalidEmail:    "The email address is not valid.",
	},
	OpSignUp: {
		CodeEmailAlreadyInUse: "This email is already registered. Please login instead.",
		CodeInvalidEmail:      "Please enter a valid email address.",
		CodeWeakPassword:      "Password is too weak. Please choose a stronger password.",
	},
	OpProfile: {
		CodeWrongPassword:       "Incorrect password. Please try again.",
		CodeRequiresRecentLogin: "Please sign in again to make this change.",
		CodeEmailAlreadyInUse:   "This email is already registered.",
		CodeInvalidEmail:        "Please enter a valid email address.",
		CodeWeakPassword:        "Password is too weak. Please choose a stronger password.",
		CodeTooManyRequests:     "Too many failed attempts. Please try again later.",
	},
}

// AuthMessage maps a provider code to the text shown for op. Unknown codes
// fall back to a generic message for the action.
func AuthMessage(op Op, code string) string {
	if msg, ok := codeMessages[op][code]; ok {
		return msg
	}
	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

// IsSilent reports codes that mean the user dismissed the flow. No message
// is shown for them.
func IsSilent(code string) bool {
	return code == CodePopupClosedByUser || code == CodeCancelledPopup
}

// describe turns a provider failure into an AuthError with a user message.
// Local validation errors already carry their message and pass through.
func describe(op Op, err error) error {
	if err == nil {
		return nil
	}
	var auth *drivalyze.AuthError
	if !errors.As(err, &auth) {
		return &drivalyze.AuthError{Code: CodeInternal, Message: AuthMessage(op, ""), Err: err}
	}
	if auth.Code == CodeInvalidInput {
		return auth
	}
	message := AuthMessage(op, auth.Code)
	if IsSilent(auth.Code) {
		message = ""
	}
	return &drivalyze.AuthError{Code: auth.Code, Message: message, Err: err}
}
