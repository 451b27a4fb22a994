package session

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-drivalyze"
)

// MinPasswordLength is the shortest password accepted locally.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	msgFillAll         = "Please fill in all fields"
	msgFillRequired    = "Please fill in all required fields"
	msgInvalidEmail    = "Please enter a valid email address"
	msgPasswordsDiffer = "Passwords do not match"
	msgNewDiffer       = "New passwords do not match"
	msgPasswordShort   = "Password should be at least 6 characters"
	msgNameEmpty       = "Display name cannot be empty"
)

func invalid(message string) error {
	return &drivalyze.AuthError{Code: CodeInvalidInput, Message: message}
}

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateSignIn checks sign-in input before contacting the provider.
func ValidateSignIn(email, password string) error {
	if email == "" || password == "" {
		return invalid(msgFillAll)
	}
	if !ValidEmail(email) {
		return invalid(msgInvalidEmail)
	}
	return nil
}

// ValidateSignUp checks sign-up input. Email syntax is left to the provider.
func ValidateSignUp(email, password, confirm string) error {
	if email == "" || password == "" || confirm == "" {
		return invalid(msgFillAll)
	}
	if password != confirm {
		return invalid(msgPasswordsDiffer)
	}
	if len(password) < MinPasswordLength {
		return invalid(msgPasswordShort)
	}
	return nil
}

// ValidateDisplayName trims name and rejects blank values.
func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid(msgNameEmpty)
	}
	return name, nil
}

// ValidateEmailChange requires the new address and the current password.
func ValidateEmailChange(email, currentPassword string) error {
	if email == "" || currentPassword == "" {
		return invalid(msgFillRequired)
	}
	return nil
}

// ValidatePasswordChange requires all three fields, a matching confirmation
// and the minimum length.
func ValidatePasswordChange(currentPassword, newPassword, confirm string) error {
	if currentPassword == "" || newPassword == "" || confirm == "" {
		return invalid(msgFillRequired)
	}
	if newPassword != confirm {
		return invalid(msgNewDiffer)
	}
	if len(newPassword) < MinPasswordLength {
		return invalid(msgPasswordShort)
	}
	return nil
}
